// Package stream 提供把一个上游字节流复制成两个独立可读流的工具。
package stream

import (
	"errors"
	"io"
	"sync"
)

// ErrClosedBranch 表示在已关闭的分支上读取。
var ErrClosedBranch = errors.New("stream: read on closed branch")

const pullSize = 32 * 1024

// Tee 把 src 拆成两个分支。两个分支各自按自己的节奏消费：
// 需要数据的一方从上游读取下一块，并为另一方排队一份；有排队数据的分支不会阻塞在上游上。
// 上游的错误（包括 io.EOF）在各分支的排队数据读完之后返回。
// 两个分支都关闭后 src 才会被关闭。
func Tee(src io.ReadCloser) (io.ReadCloser, io.ReadCloser) {
	s := &splitter{src: src}
	s.branches[0] = &branch{s: s}
	s.branches[1] = &branch{s: s}
	return s.branches[0], s.branches[1]
}

type splitter struct {
	src io.ReadCloser

	pullMu sync.Mutex // 串行化对上游的读取

	mu       sync.Mutex // 保护下面的字段
	branches [2]*branch
	err      error
	closed   int
}

type branch struct {
	s      *splitter
	queue  [][]byte
	closed bool
}

func (b *branch) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		b.s.mu.Lock()
		if b.closed {
			b.s.mu.Unlock()
			return 0, ErrClosedBranch
		}
		if len(b.queue) > 0 {
			n := copy(p, b.queue[0])
			if n < len(b.queue[0]) {
				b.queue[0] = b.queue[0][n:]
			} else {
				b.queue[0] = nil
				b.queue = b.queue[1:]
			}
			b.s.mu.Unlock()
			return n, nil
		}
		if b.s.err != nil {
			err := b.s.err
			b.s.mu.Unlock()
			return 0, err
		}
		b.s.mu.Unlock()

		b.s.pull(b)
	}
}

// pull 从上游读一块并分发给所有未关闭的分支。
// 如果等锁期间 want 已经拿到数据（另一分支刚读过），直接返回。
func (s *splitter) pull(want *branch) {
	s.pullMu.Lock()
	defer s.pullMu.Unlock()

	s.mu.Lock()
	ready := len(want.queue) > 0 || s.err != nil || want.closed
	s.mu.Unlock()
	if ready {
		return
	}

	buf := make([]byte, pullSize)
	n, err := s.src.Read(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		// 各分支只读不写，可以共享同一块底层数组
		chunk := buf[:n]
		for _, br := range s.branches {
			if !br.closed {
				br.queue = append(br.queue, chunk)
			}
		}
	}
	if err != nil {
		s.err = err
	}
}

func (b *branch) Close() error {
	b.s.mu.Lock()
	if b.closed {
		b.s.mu.Unlock()
		return nil
	}
	b.closed = true
	b.queue = nil
	b.s.closed++
	last := b.s.closed == len(b.s.branches)
	b.s.mu.Unlock()

	if last {
		return b.s.src.Close()
	}
	return nil
}
