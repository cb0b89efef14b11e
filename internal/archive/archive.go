// Package archive periodically exports the audit trail as JSONL to
// off-host destinations (S3, a git repository).
package archive

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/audit"
)

// DefaultWriteTimeout bounds one destination write.
const DefaultWriteTimeout = time.Minute

// Destination is an archive target.
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write replaces the archived export with data.
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports the audit log to every destination on an interval.
// Failures are logged and retried on the next tick only.
type Scheduler struct {
	log          audit.Log
	destinations []Destination
	interval     time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler exporting log to destinations every interval.
func NewScheduler(log audit.Log, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		log:          log,
		destinations: destinations,
		interval:     interval,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger,
	}
}

// Start runs an export immediately, then on each tick, until ctx is done
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce exports once and writes to each destination. It returns the
// number of destinations written successfully.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s.log, &buf)
	if err != nil {
		s.logger.Error("archive: export failed", "err", err)
		return 0
	}
	data := buf.Bytes()

	ok := 0
	for _, dest := range s.destinations {
		wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err := dest.Write(wctx, data)
		cancel()
		if err != nil {
			s.logger.Error("archive: destination write failed", "destination", dest.Name(), "err", err)
			continue
		}
		ok++
	}

	s.logger.Info("archive: export completed", "entries", n, "destinations", ok, "bytes", len(data))
	return ok
}
