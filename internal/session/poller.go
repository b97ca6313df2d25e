package session

import (
	"context"
	"sync"
	"time"
)

// Poller 周期性执行 tick，直到 Stop 或父 context 结束
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartPoller 立即返回；tick 在独立 goroutine 中按 interval 串行执行，不会重叠
func StartPoller(parent context.Context, interval time.Duration, tick func(ctx context.Context)) *Poller {
	ctx, cancel := context.WithCancel(parent)
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
	return p
}

// Stop 取消并等待正在执行的 tick 返回，可重复调用
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.once.Do(p.cancel)
	<-p.done
}
