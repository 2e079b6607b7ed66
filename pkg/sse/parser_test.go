package sse

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaLine(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func sampleStream() string {
	var b strings.Builder
	b.WriteString(": keep-alive comment\n\n")
	for _, part := range []string{"## Step", "-by-Step ", "Solution\n", "导数是", "变化率 ", "💡 done"} {
		b.WriteString(deltaLine(part))
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func feedInChunks(data []byte, sizes func() int) string {
	var p Parser
	for len(data) > 0 {
		n := sizes()
		if n > len(data) {
			n = len(data)
		}
		p.Feed(data[:n])
		data = data[n:]
	}
	return p.Finish()
}

func TestParser_SingleChunk(t *testing.T) {
	var p Parser
	p.Feed([]byte(sampleStream()))

	assert.True(t, p.Done())
	assert.Equal(t, "## Step-by-Step Solution\n导数是变化率 💡 done", p.Finish())
}

func TestParser_ChunkBoundaryIndependence(t *testing.T) {
	data := []byte(sampleStream() + deltaLine("after done is ignored"))
	want := feedInChunks(data, func() int { return len(data) })

	for size := 1; size <= 17; size++ {
		s := size
		assert.Equal(t, want, feedInChunks(data, func() int { return s }), "chunk size %d", size)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		got := feedInChunks(data, func() int { return 1 + rng.Intn(9) })
		require.Equal(t, want, got)
	}
}

func TestParser_MalformedLineIsDroppedAtFinish(t *testing.T) {
	data := deltaLine("a") + "data: {\"choices\":[{\"delta\":\n" + deltaLine("b") + deltaLine("c")

	var p Parser
	p.Feed([]byte(data))
	// 坏行之后的内容要等到 Finish 才会被解析
	assert.Equal(t, "a", p.Text())
	assert.Equal(t, "abc", p.Finish())

	assert.Equal(t, "abc", feedInChunks([]byte(data), func() int { return 3 }))
}

func TestParser_CRLFAndTrailingPartialLine(t *testing.T) {
	data := "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\r\n\r\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"y\"}}]}"

	var p Parser
	p.Feed([]byte(data))
	assert.Equal(t, "x", p.Text())
	assert.False(t, p.Done())
	assert.Equal(t, "xy", p.Finish())
}

func TestParser_IgnoresNonDataLinesAndEmptyChoices(t *testing.T) {
	data := "event: ping\n" + "data: \n" + "data: {\"choices\":[]}\n" + "id: 7\n" + deltaLine("ok") + "data: [DONE]\n"

	var p Parser
	p.Feed([]byte(data))
	assert.True(t, p.Done())
	assert.Equal(t, "ok", p.Finish())
}

func TestAccumulate(t *testing.T) {
	text, err := Accumulate(iotest.OneByteReader(strings.NewReader(sampleStream())))
	require.NoError(t, err)
	assert.Equal(t, "## Step-by-Step Solution\n导数是变化率 💡 done", text)
}

func TestAccumulate_ReadErrorKeepsPartialText(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(deltaLine("partial")), iotest.ErrReader(boom))

	text, err := Accumulate(r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", text)
}
