package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymind-go/internal/config"
	"studymind-go/internal/model"
	"studymind-go/pkg/tasks"
)

type fakeMaterialRepo struct {
	mu        sync.Mutex
	materials map[string]*model.Material
}

func (f *fakeMaterialRepo) Create(_ context.Context, m *model.Material) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materials[m.ID] = m
	return nil
}

func (f *fakeMaterialRepo) FindByID(_ context.Context, id string) (*model.Material, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.materials[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMaterialRepo) ListByUser(context.Context, string) ([]model.Material, error) {
	return nil, nil
}

func (f *fakeMaterialRepo) SetExtractedText(_ context.Context, id, text, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materials[id].ExtractedText = &text
	f.materials[id].ProcessingStatus = status
	return nil
}

func (f *fakeMaterialRepo) UpdateStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materials[id].ProcessingStatus = status
	return nil
}

type fakeChunkRepo struct {
	chunks  map[string][]*model.MaterialChunk
	deletes int
}

func (f *fakeChunkRepo) BatchCreate(_ context.Context, chunks []*model.MaterialChunk) error {
	for _, c := range chunks {
		c.ID = fmt.Sprintf("%s-%d", c.MaterialID, c.ChunkIndex)
		f.chunks[c.MaterialID] = append(f.chunks[c.MaterialID], c)
	}
	return nil
}

func (f *fakeChunkRepo) FindByMaterialID(_ context.Context, materialID string, limit int) ([]model.MaterialChunk, error) {
	var out []model.MaterialChunk
	for _, c := range f.chunks[materialID] {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeChunkRepo) DeleteByMaterialID(_ context.Context, materialID string) error {
	f.deletes++
	delete(f.chunks, materialID)
	return nil
}

type fakeObjects map[string][]byte

func (f fakeObjects) Get(_ context.Context, name string) ([]byte, error) {
	data, ok := f[name]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(_ context.Context, r io.Reader, _, _ string) (string, error) {
	f.calls++
	_, _ = io.ReadAll(r)
	return f.text, f.err
}

type fakeIndexer struct {
	docs []model.ChunkDocument
	err  error
}

func (f *fakeIndexer) ReplaceMaterialChunks(_ context.Context, _ string, docs []model.ChunkDocument) error {
	f.docs = docs
	return f.err
}

type processorFixture struct {
	materials *fakeMaterialRepo
	chunks    *fakeChunkRepo
	objects   fakeObjects
	extractor *fakeExtractor
	indexer   *fakeIndexer
	processor *Processor
}

func newProcessorFixture(cfg config.MaterialConfig) *processorFixture {
	f := &processorFixture{
		materials: &fakeMaterialRepo{materials: map[string]*model.Material{}},
		chunks:    &fakeChunkRepo{chunks: map[string][]*model.MaterialChunk{}},
		objects:   fakeObjects{},
		extractor: &fakeExtractor{},
		indexer:   &fakeIndexer{},
	}
	f.processor = NewProcessor(f.materials, f.chunks, f.objects, f.extractor, f.indexer, cfg)
	return f
}

func (f *processorFixture) addMaterial(id, fileName, contentType string, data []byte) {
	f.materials.materials[id] = &model.Material{
		ID: id, UserID: "u1", FileName: fileName, ContentType: contentType,
		StoragePath: "u1/" + id, ProcessingStatus: model.MaterialProcessing,
	}
	if data != nil {
		f.objects["u1/"+id] = data
	}
}

func fiveParagraphs() string {
	parts := make([]string, 5)
	for i := range parts {
		parts[i] = strings.Repeat(string(rune('a'+i)), 500)
	}
	return strings.Join(parts, "\n\n")
}

func TestProcess_PlainTextMaterial(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{})
	f.addMaterial("m1", "notes.txt", "text/plain", []byte(fiveParagraphs()))

	n, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, f.extractor.calls)

	m := f.materials.materials["m1"]
	assert.Equal(t, model.MaterialReady, m.ProcessingStatus)
	assert.Equal(t, fiveParagraphs(), *m.ExtractedText)
	require.Len(t, f.chunks.chunks["m1"], 3)
	for i, c := range f.chunks.chunks["m1"] {
		assert.Equal(t, i, c.ChunkIndex)
	}
	require.Len(t, f.indexer.docs, 3)
	assert.Equal(t, "m1-0", f.indexer.docs[0].ChunkID)
	assert.Equal(t, "u1", f.indexer.docs[0].UserID)
}

func TestProcess_ReprocessingReplacesChunks(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{})
	f.addMaterial("m1", "notes.md", "", []byte(fiveParagraphs()))

	_, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)
	n, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Len(t, f.chunks.chunks["m1"], 3)
	assert.Equal(t, 2, f.chunks.deletes)
}

func TestProcess_BinaryGoesThroughExtractor(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{})
	f.extractor.text = "Chapter 1\n\nCells"
	f.addMaterial("m1", "bio.pdf", "application/pdf", []byte("%PDF"))

	n, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Equal(t, "Chapter 1\n\nCells", *f.materials.materials["m1"].ExtractedText)
}

func TestProcess_ExtractionFailureStoresPlaceholder(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{})
	f.extractor.err = errors.New("tika unavailable")
	f.addMaterial("m1", "slides.pptx", "application/vnd.ms-powerpoint", []byte("PK"))

	n, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	m := f.materials.materials["m1"]
	assert.Equal(t, ExtractionFailedText, *m.ExtractedText)
	assert.Equal(t, model.MaterialReady, m.ProcessingStatus)
}

func TestProcess_TruncatesExtractedText(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{MaxTextRunes: 100})
	f.addMaterial("m1", "long.txt", "text/plain", []byte(strings.Repeat("字", 250)))

	_, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 100, utf8.RuneCountInString(*f.materials.materials["m1"].ExtractedText))
}

func TestProcess_NotFoundAndDownloadFailure(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{})

	_, err := f.processor.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMaterialNotFound)

	f.addMaterial("m2", "gone.txt", "text/plain", nil)
	err = f.processor.ProcessTask(context.Background(), tasks.MaterialProcessingTask{MaterialID: "m2"})
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, model.MaterialError, f.materials.materials["m2"].ProcessingStatus)
}

func TestProcess_IndexFailureIsIgnored(t *testing.T) {
	f := newProcessorFixture(config.MaterialConfig{})
	f.indexer.err = errors.New("es down")
	f.addMaterial("m1", "notes.txt", "text/plain", []byte("hello"))

	n, err := f.processor.Process(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
