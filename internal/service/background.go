package service

import (
	"context"
	"sync"
	"time"

	"studymind-go/pkg/log"
)

// Background 跟踪脱离请求生命周期运行的持久化任务，进程退出前可以等待它们完成。
type Background struct {
	wg sync.WaitGroup
}

// Go 在新的 goroutine 中以 context.Background() 运行 fn。
func (b *Background) Go(name string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("[Background] %s panic: %v", name, r)
			}
		}()
		fn(context.Background())
	}()
}

// Wait 等待所有后台任务结束，超时返回 false。
func (b *Background) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
