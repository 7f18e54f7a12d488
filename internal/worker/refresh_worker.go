package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pulse/internal/amqp"
	"pulse/internal/core"
	"pulse/internal/log"
	"pulse/internal/services"
)

// Refresher is the part of the dataset service the worker drives.
type Refresher interface {
	Invalidate(file string)
	InvalidateAll() int
	Warm(ctx context.Context, files []string) services.WarmReport
}

// Consumer delivers refresh requests, typically from AMQP.
type Consumer interface {
	ConsumeDatasetRefresh(ctx context.Context, handler func(context.Context, *amqp.DatasetRefreshMessage) error) error
}

// RefreshWorker reloads cached datasets on a schedule or on request.
type RefreshWorker struct {
	datasets Refresher
	logger   *log.Logger
	timeout  time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

func NewRefreshWorker(datasets Refresher, logger *log.Logger) *RefreshWorker {
	return &RefreshWorker{
		datasets: datasets,
		logger:   logger.WithComponent(log.ComponentWorker),
		timeout:  2 * time.Minute,
	}
}

// HandleRefresh invalidates and reloads the dataset named by msg, or the
// whole catalog when the message names no file.
func (w *RefreshWorker) HandleRefresh(ctx context.Context, msg *amqp.DatasetRefreshMessage) error {
	files := core.Files()
	if msg.All() {
		n := w.datasets.InvalidateAll()
		w.logger.InfoContext(ctx, "Refreshing all datasets",
			log.FieldOperation, log.OpRefresh, "dropped", n, "reason", msg.Reason)
	} else {
		d, err := core.LookupDataset(msg.File)
		if err != nil {
			return fmt.Errorf("refresh %q: %w", msg.File, err)
		}
		files = []string{d.File}
		w.datasets.Invalidate(d.File)
		w.logger.InfoContext(ctx, "Refreshing dataset",
			log.FieldOperation, log.OpRefresh, log.FieldFile, d.File, "reason", msg.Reason)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	report := w.datasets.Warm(ctx, files)
	if report.OK() {
		return nil
	}
	failed := make([]string, 0, len(report.Failed))
	for file := range report.Failed {
		failed = append(failed, file)
	}
	sort.Strings(failed)
	errs := make([]error, 0, len(failed))
	for _, file := range failed {
		errs = append(errs, fmt.Errorf("%s: %w", file, report.Failed[file]))
	}
	return fmt.Errorf("refresh: %w", errors.Join(errs...))
}

// StartCron schedules a full refresh on spec (standard five-field cron).
// An empty spec disables the schedule.
func (w *RefreshWorker) StartCron(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return errors.New("refresh schedule already started")
	}

	logger := cronLogger{w.logger}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := c.AddFunc(spec, func() {
		msg := amqp.NewDatasetRefreshMessage("", "schedule")
		if err := w.HandleRefresh(ctx, msg); err != nil {
			w.logger.WarnContext(ctx, "Scheduled refresh incomplete", log.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh %q: %w", spec, err)
	}
	c.Start()
	w.cron = c
	w.logger.Info("Refresh schedule started", "cron", spec)
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (w *RefreshWorker) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		w.logger.Info("Refresh schedule stopped")
	}
}

// Run consumes refresh requests until ctx is done.
func (w *RefreshWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Refresh consumer starting")
	err := consumer.ConsumeDatasetRefresh(ctx, w.HandleRefresh)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]any{log.FieldError, err}, keysAndValues...)...)
}
