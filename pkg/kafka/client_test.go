package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymind-go/pkg/tasks"
)

func init() {
	retryBackoff = time.Millisecond
}

// fakeProcessor 依次返回 errs 中的错误，用完后返回 fallback。
type fakeProcessor struct {
	errs     []error
	fallback error
	calls    []tasks.MaterialProcessingTask
	onCall   func()
}

func (f *fakeProcessor) ProcessTask(_ context.Context, task tasks.MaterialProcessingTask) error {
	f.calls = append(f.calls, task)
	if f.onCall != nil {
		f.onCall()
	}
	if i := len(f.calls) - 1; i < len(f.errs) {
		return f.errs[i]
	}
	return f.fallback
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Reset(_ context.Context, key string) error {
	delete(f.counts, key)
	return nil
}

func taskBytes(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(tasks.MaterialProcessingTask{MaterialID: "m1", FileName: "notes.pdf"})
	require.NoError(t, err)
	return b
}

func TestHandleMessage_SuccessCommitsAndResets(t *testing.T) {
	p := &fakeProcessor{}
	c := &fakeCounter{counts: map[string]int64{"kafka:attempts:m1": 1}}

	assert.True(t, handleMessage(context.Background(), taskBytes(t), p, c))
	require.Len(t, p.calls, 1)
	assert.Equal(t, "m1", p.calls[0].MaterialID)
	assert.NotContains(t, c.counts, "kafka:attempts:m1")
}

func TestHandleMessage_RetriesWithinOneDelivery(t *testing.T) {
	tikaDown := errors.New("tika down")
	p := &fakeProcessor{errs: []error{tikaDown, tikaDown}}
	c := &fakeCounter{counts: map[string]int64{}}

	assert.True(t, handleMessage(context.Background(), taskBytes(t), p, c))
	assert.Len(t, p.calls, 3)
	assert.NotContains(t, c.counts, "kafka:attempts:m1")
}

func TestHandleMessage_GivesUpAfterThreeFailures(t *testing.T) {
	p := &fakeProcessor{fallback: errors.New("tika down")}
	c := &fakeCounter{counts: map[string]int64{}}

	assert.True(t, handleMessage(context.Background(), taskBytes(t), p, c))
	assert.Len(t, p.calls, maxAttempts)
	assert.Equal(t, int64(maxAttempts), c.counts["kafka:attempts:m1"])
}

func TestHandleMessage_ContinuesCountAfterRestart(t *testing.T) {
	p := &fakeProcessor{fallback: errors.New("tika down")}
	c := &fakeCounter{counts: map[string]int64{"kafka:attempts:m1": 2}}

	assert.True(t, handleMessage(context.Background(), taskBytes(t), p, c))
	assert.Len(t, p.calls, 1)
}

func TestHandleMessage_CounterFailureFallsBackToLocalCount(t *testing.T) {
	p := &fakeProcessor{fallback: errors.New("tika down")}
	c := &fakeCounter{counts: map[string]int64{}, err: errors.New("redis down")}

	assert.True(t, handleMessage(context.Background(), taskBytes(t), p, c))
	assert.Len(t, p.calls, maxAttempts)
}

func TestHandleMessage_ShutdownDoesNotCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProcessor{fallback: errors.New("tika down"), onCall: cancel}
	c := &fakeCounter{counts: map[string]int64{}}

	assert.False(t, handleMessage(ctx, taskBytes(t), p, c))
	assert.Len(t, p.calls, 1)
	assert.Empty(t, c.counts)
}

func TestHandleMessage_MalformedIsCommitted(t *testing.T) {
	p := &fakeProcessor{}
	assert.True(t, handleMessage(context.Background(), []byte("{not json"), p, &fakeCounter{counts: map[string]int64{}}))
	assert.Empty(t, p.calls)
}
