package snapshot

import (
	"bytes"
	"context"
	"log/slog"
	"time"
)

// Destination is the interface for a snapshot target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler periodically exports the configured scopes' graphs to one or
// more destinations.
type Scheduler struct {
	source       Source
	scopes       []string
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	stop func()
}

// NewScheduler creates a scheduler that snapshots the given scopes to the
// destinations at the specified interval.
func NewScheduler(source Source, scopes []string, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:       source,
		scopes:       scopes,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start launches the snapshot loop: one export right away, then one per
// interval until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stop = func() {
		cancel()
		<-done
	}

	go func() {
		defer close(done)
		s.snapshotOnce(ctx)
		tick := time.NewTicker(s.interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.snapshotOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight export to finish. Stopping
// a never-started scheduler is a no-op.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	s.stop()
	s.stop = nil
}

func (s *Scheduler) snapshotOnce(ctx context.Context) {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.source, s.scopes, &buf); err != nil {
		s.logger.Error("snapshot export failed", "err", err)
		return
	}
	data := buf.Bytes()

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("snapshot destination write failed", "destination", i, "err", err)
		}
	}

	s.logger.Info("snapshot completed",
		"scopes", len(s.scopes),
		"destinations", len(s.destinations),
		"bytes", len(data))
}
