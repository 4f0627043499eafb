package ingest

import (
	"context"
	"sync"
	"time"

	"battery-observer/src/analysis"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/models"
	"battery-observer/src/utils"
)

// ReadingQueue receives accepted readings for archiving. Enqueue must not block.
type ReadingQueue interface {
	Enqueue(r models.MReading) bool
}

// Processor turns state changes into readings and alerts. Handle is called
// from the event source's read goroutine only.
type Processor struct {
	Store         *utils.ReadingStore
	Notifier      interfaces.INotifier
	Queue         ReadingQueue
	Threshold     float64
	NotifyTimeout time.Duration
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	Now           func() time.Time

	tracked map[string]struct{}
	pending sync.WaitGroup
}

// -----------------------------------------------------------------------------

// NewProcessor wires a processor. notifier and queue may be nil.
func NewProcessor(cfg *models.MConfig, store *utils.ReadingStore, notifier interfaces.INotifier, queue ReadingQueue, m *metrics.Metrics, log *logger.Logger) *Processor {
	if m == nil {
		m = metrics.NewDiscard()
	}
	if log == nil {
		log = logger.NewLogger(cfg, "Processor")
	}
	return &Processor{
		Store:         store,
		Notifier:      notifier,
		Queue:         queue,
		Threshold:     cfg.Monitor.BatteryThreshold,
		NotifyTimeout: time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
		Metrics:       m,
		Logger:        log,
		Now:           time.Now,
		tracked:       analysis.TrackedSet(store.AllTrackedIDs()),
	}
}

// -----------------------------------------------------------------------------

// Handle applies the acceptance filter, records the reading and raises an
// alert when it is below the threshold.
func (p *Processor) Handle(change models.MStateChange) {
	value, reason := analysis.AcceptState(change, p.tracked)
	if reason != analysis.Accepted {
		p.Metrics.ReadingsRejected.WithLabelValues(reason.String()).Inc()
		switch reason {
		case analysis.RejectNonNumeric, analysis.RejectNonFinite:
			p.Logger.Warning("Ignoring state %q for %s: %s", change.State, change.EntityID, reason)
		case analysis.RejectUntracked:
		default:
			p.Logger.Debug("Ignoring state %q for %s: %s", change.State, change.EntityID, reason)
		}
		return
	}

	r := models.MReading{EntityID: change.EntityID, Value: value, ObservedAt: p.Now()}
	p.Store.Record(r)

	p.Metrics.ReadingsAccepted.WithLabelValues(r.EntityID).Inc()
	p.Metrics.BatteryLevel.WithLabelValues(r.EntityID).Set(r.Value)
	p.Metrics.SeriesSize.Set(float64(p.Store.Size()))
	p.Logger.Debug("Recorded %s = %.1f", r.EntityID, r.Value)

	if p.Queue != nil {
		p.Queue.Enqueue(r)
	}

	decision := analysis.Evaluate(r, p.Threshold)
	if !decision.Emit {
		return
	}
	p.Metrics.AlertsEmitted.WithLabelValues(r.EntityID).Inc()
	p.Logger.Warning("%s", decision.Message)
	p.dispatch(decision.Message)
}

// -----------------------------------------------------------------------------

// dispatch delivers message off the ingestion goroutine. Failures are logged
// and counted, never retried.
func (p *Processor) dispatch(message string) {
	if p.Notifier == nil {
		return
	}

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.NotifyTimeout)
		defer cancel()

		start := time.Now()
		err := p.Notifier.Notify(ctx, message)
		p.Metrics.NotificationLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			p.Metrics.NotificationFailures.WithLabelValues(p.Notifier.Name()).Inc()
			p.Logger.Error("Notification failed: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// Wait blocks until every in-flight notification has finished.
func (p *Processor) Wait() {
	p.pending.Wait()
}
