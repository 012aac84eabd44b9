package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/notify"
	"github.com/fentz26/dealflow/internal/telemetry"
)

// Source lists deals and their live tasks.
type Source interface {
	ListDeals(ctx context.Context) ([]string, error)
	ListTasksForDeal(ctx context.Context, dealID string) ([]models.TaskRecord, error)
}

// SweepResult summarizes one pass over every deal.
type SweepResult struct {
	At           time.Time `json:"at"`
	Deals        int       `json:"deals"`
	DealsOverdue int       `json:"deals_overdue"`
	OverdueTasks int       `json:"overdue_tasks"`
	Failed       int       `json:"failed"`
	Duration     string    `json:"duration"`
}

// Scheduler periodically detects overdue tasks and publishes one overdue
// event per affected deal. Overdue state is never written back.
type Scheduler struct {
	src     Source
	pub     notify.Publisher
	metrics *telemetry.Metrics
	config  *Config
	now     func() time.Time
	log     *slog.Logger

	mu   sync.Mutex
	last *SweepResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper. A nil publisher discards events.
func New(src Source, pub notify.Publisher, metrics *telemetry.Metrics, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if pub == nil {
		pub = notify.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		src:     src,
		pub:     pub,
		metrics: metrics,
		config:  cfg,
		now:     time.Now,
		log:     slog.Default().With("component", "scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetClock replaces the time source used to evaluate due dates.
func (sch *Scheduler) SetClock(now func() time.Time) {
	sch.now = now
}

// Start begins the sweep loop if it is enabled.
func (sch *Scheduler) Start() {
	if !sch.config.Enabled || sch.config.Interval <= 0 {
		sch.log.Info("overdue sweeper disabled")
		return
	}
	sch.wg.Add(1)
	go sch.loop()
	sch.log.Info("overdue sweeper started", "interval", sch.config.Interval)
}

// Stop gracefully stops the loop and waits for an in-flight sweep.
func (sch *Scheduler) Stop() {
	sch.cancel()
	sch.wg.Wait()
	sch.log.Info("overdue sweeper stopped")
}

func (sch *Scheduler) loop() {
	defer sch.wg.Done()

	ticker := time.NewTicker(sch.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			if _, err := sch.SweepOnce(sch.ctx); err != nil {
				sch.log.Error("overdue sweep failed", "err", err)
			}
		}
	}
}

// SweepOnce evaluates every deal once. A failure on one deal is logged and
// counted without stopping the others.
func (sch *Scheduler) SweepOnce(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	deals, err := sch.src.ListDeals(ctx)
	if err != nil {
		return nil, err
	}

	now := sch.now()
	res := &SweepResult{At: now, Deals: len(deals)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, sch.config.workers())

	for _, dealID := range deals {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(dealID string) {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := sch.sweepDeal(ctx, dealID, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				sch.log.Warn("sweep deal", "deal_id", dealID, "err", err)
				return
			}
			if n > 0 {
				res.DealsOverdue++
				res.OverdueTasks += n
			}
		}(dealID)
	}
	wg.Wait()

	res.Duration = time.Since(start).String()
	sch.mu.Lock()
	sch.last = res
	sch.mu.Unlock()
	sch.log.Debug("overdue sweep done", "deals", res.Deals, "overdue_tasks", res.OverdueTasks, "failed", res.Failed)
	return res, ctx.Err()
}

func (sch *Scheduler) sweepDeal(ctx context.Context, dealID string, now time.Time) (int, error) {
	tasks, err := sch.src.ListTasksForDeal(ctx, dealID)
	if err != nil {
		return 0, err
	}
	overdue := checklist.OverdueTasks(tasks, now)
	sch.metrics.Overdue(ctx, dealID, len(overdue))
	if len(overdue) == 0 {
		return 0, nil
	}

	ids := make([]string, len(overdue))
	for i, o := range overdue {
		ids[i] = o.Task.ID
	}
	err = sch.pub.Publish(ctx, notify.Event{
		Type:      notify.EventOverdue,
		DealID:    dealID,
		Count:     len(overdue),
		TaskIDs:   ids,
		Timestamp: now,
	})
	if err != nil {
		return 0, err
	}
	return len(overdue), nil
}

// LastSweep returns the result of the most recent sweep, or nil.
func (sch *Scheduler) LastSweep() *SweepResult {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	if sch.last == nil {
		return nil
	}
	r := *sch.last
	return &r
}
