package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ConnectivityProbe reports whether the backend is reachable right now.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}

type drainer interface {
	Drain(ctx context.Context) (Report, error)
}

// Pruner removes settled queue records older than retention.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type WatcherConfig struct {
	PollInterval  time.Duration
	PruneInterval time.Duration
	Retention     time.Duration
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval:  5 * time.Second,
		PruneInterval: time.Hour,
		Retention:     7 * 24 * time.Hour,
	}
}

// Watcher drains the queue once per offline->online transition. The process
// starts in the offline state, so the first successful probe drains whatever
// was left from a previous run.
type Watcher struct {
	cfg     WatcherConfig
	engine  drainer
	pruner  Pruner
	probe   ConnectivityProbe
	log     *zap.Logger
	online  atomic.Bool
	reports chan Report
}

func NewWatcher(engine *Engine, pruner Pruner, probe ConnectivityProbe, cfg WatcherConfig, log *zap.Logger) *Watcher {
	return newWatcher(engine, pruner, probe, cfg, log)
}

func newWatcher(engine drainer, pruner Pruner, probe ConnectivityProbe, cfg WatcherConfig, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		cfg:     cfg,
		engine:  engine,
		pruner:  pruner,
		probe:   probe,
		log:     log,
		reports: make(chan Report, 1),
	}
}

// Reports delivers the report of each drain the watcher triggers. Reports
// nobody reads are dropped.
func (w *Watcher) Reports() <-chan Report {
	return w.reports
}

func (w *Watcher) Run(ctx context.Context) {
	pollTicker := time.NewTicker(w.cfg.PollInterval)
	defer pollTicker.Stop()

	var pruneC <-chan time.Time
	if w.pruner != nil && w.cfg.PruneInterval > 0 && w.cfg.Retention > 0 {
		pruneTicker := time.NewTicker(w.cfg.PruneInterval)
		defer pruneTicker.Stop()
		pruneC = pruneTicker.C
	}

	w.poll(ctx)
	for {
		select {
		case <-pollTicker.C:
			w.poll(ctx)
		case <-pruneC:
			w.prune(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Online reports the connectivity state observed by the last poll.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

func (w *Watcher) poll(ctx context.Context) {
	online := w.probe.Online(ctx)
	wasOnline := w.online.Swap(online)

	if !online {
		if wasOnline {
			w.log.Info("connectivity lost")
		}
		return
	}
	if wasOnline {
		return
	}

	w.log.Info("connectivity restored, draining offline queue")
	report, err := w.engine.Drain(ctx)
	if err != nil {
		w.log.Error("drain interrupted", zap.Error(err))
	}

	select {
	case w.reports <- report:
	default:
	}
}

func (w *Watcher) prune(ctx context.Context) {
	if _, err := w.pruner.Prune(ctx, w.cfg.Retention); err != nil {
		w.log.Error("failed to prune offline queue", zap.Error(err))
	}
}
