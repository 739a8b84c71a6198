package worker

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dredbirozsolt/livechat/internal/service"
	"github.com/dredbirozsolt/livechat/internal/service/retirement"
)

// Worker 后台定时任务
// 两个独立循环：在线状态过期清理与会话退休清理。
// 单次迭代的 panic 只中断该次迭代，不终止循环。
type Worker struct {
	svc *service.Services

	presenceInterval   time.Duration
	retirementInterval time.Duration

	wg sync.WaitGroup
}

// New 创建后台任务
func New(svc *service.Services) *Worker {
	cfg := svc.Config.Chat
	return &Worker{
		svc:                svc,
		presenceInterval:   time.Duration(cfg.PresenceSweepSeconds) * time.Second,
		retirementInterval: time.Duration(cfg.RetirementSweepHours) * time.Hour,
	}
}

// Start 启动后台循环，ctx 取消后全部退出
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(2)
	go w.loop(ctx, "presence-sweep", w.presenceInterval, w.sweepPresence)
	go w.loop(ctx, "retirement-sweep", w.retirementInterval, w.sweepRetirement)
}

// Stop 等待所有循环退出
func (w *Worker) Stop() {
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("worker %s started, interval=%v", name, interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s stopped", name)
			return
		case <-ticker.C:
			w.runOnce(ctx, name, fn)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, name string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker %s panic: %v\n%s", name, r, debug.Stack())
		}
	}()
	fn(ctx)
}

func (w *Worker) sweepPresence(ctx context.Context) {
	flipped, err := w.svc.Presence.SweepStale(ctx)
	if err != nil {
		log.Printf("presence sweep failed: %v", err)
		return
	}
	if flipped > 0 {
		log.Printf("presence sweep: %d operators marked offline", flipped)
	}
}

func (w *Worker) sweepRetirement(ctx context.Context) {
	report, err := w.svc.Retirement.Sweep(ctx, retirement.Options{})
	if err != nil {
		log.Printf("retirement sweep failed: %v", err)
		return
	}
	if report.Candidates > 0 {
		log.Printf("retirement sweep: candidates=%d retired=%d skipped=%d failed=%d",
			report.Candidates, report.Retired, report.Skipped, report.Failed)
	}

	if !w.svc.Config.Chat.HardDeleteEnabled {
		return
	}
	hd, err := w.svc.Retirement.HardDelete(ctx, retirement.Options{})
	if err != nil {
		log.Printf("hard delete failed: %v", err)
		return
	}
	if hd.Purged > 0 {
		log.Printf("hard delete: %d anonymized conversations purged", hd.Purged)
	}
}
