package storage

import (
	"context"
	"sync"
	"time"

	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/models"
)

const writeTimeout = 5 * time.Second

// Archiver moves readings from ingestion to the archives on its own
// goroutine. Enqueue never blocks; a full queue drops the reading.
type Archiver struct {
	Archives []interfaces.IReadingArchive
	Logger   *logger.Logger
	Metrics  *metrics.Metrics

	queue chan models.MReading
}

// -----------------------------------------------------------------------------

func NewArchiver(archives []interfaces.IReadingArchive, queueSize int, m *metrics.Metrics, log *logger.Logger) *Archiver {
	if queueSize <= 0 {
		queueSize = 1
	}
	if m == nil {
		m = metrics.NewDiscard()
	}
	return &Archiver{
		Archives: archives,
		Logger:   log,
		Metrics:  m,
		queue:    make(chan models.MReading, queueSize),
	}
}

// -----------------------------------------------------------------------------

// Enqueue hands r to the worker and reports whether it was accepted.
func (a *Archiver) Enqueue(r models.MReading) bool {
	if len(a.Archives) == 0 {
		return false
	}
	select {
	case a.queue <- r:
		return true
	default:
		a.Metrics.ArchiveDropped.Inc()
		a.Logger.Warning("Archive queue full, dropping reading for %s", r.EntityID)
		return false
	}
}

// -----------------------------------------------------------------------------

// Start runs the worker until ctx is cancelled, then writes whatever is still
// queued before signalling wg.
func (a *Archiver) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case r := <-a.queue:
				a.write(context.Background(), r)
			case <-ctx.Done():
				a.drain()
				return
			}
		}
	}()
}

// -----------------------------------------------------------------------------

func (a *Archiver) drain() {
	for {
		select {
		case r := <-a.queue:
			a.write(context.Background(), r)
		default:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (a *Archiver) write(parent context.Context, r models.MReading) {
	for _, archive := range a.Archives {
		ctx, cancel := context.WithTimeout(parent, writeTimeout)
		err := archive.SaveReading(ctx, r)
		cancel()
		if err != nil {
			a.Metrics.ArchiveWrites.WithLabelValues(archive.Name(), "error").Inc()
			a.Logger.Error("Archive %s failed for %s: %v", archive.Name(), r.EntityID, err)
			continue
		}
		a.Metrics.ArchiveWrites.WithLabelValues(archive.Name(), "ok").Inc()
	}
}

// -----------------------------------------------------------------------------

// Close closes every archive.
func (a *Archiver) Close() {
	for _, archive := range a.Archives {
		if err := archive.Close(); err != nil {
			a.Logger.Error("Closing archive %s: %v", archive.Name(), err)
		}
	}
}
