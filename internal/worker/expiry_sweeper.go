package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/storage"
)

// ExpiredIndex lists and forgets indexed files
type ExpiredIndex interface {
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*storage.FileRecord, error)
	Delete(ctx context.Context, token string) error
}

// FileDeleter removes a stored file by token
type FileDeleter interface {
	DeleteFile(ctx context.Context, token string) error
}

// SweeperConfig controls the expiry sweeper
type SweeperConfig struct {
	TTL       time.Duration // file lifetime, default 24h
	Interval  time.Duration // sweep period, default 10m
	BatchSize int           // files per sweep, default 200
}

// ExpirySweeper deletes stored files older than the TTL
type ExpirySweeper struct {
	index  ExpiredIndex
	files  FileDeleter
	config SweeperConfig
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(index ExpiredIndex, files FileDeleter, cfg SweeperConfig, logger *zap.Logger) *ExpirySweeper {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &ExpirySweeper{
		index:  index,
		files:  files,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start starts the sweep loop
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("expiry sweeper is already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("ExpirySweeper started",
		zap.Duration("ttl", s.config.TTL),
		zap.Duration("interval", s.config.Interval))

	go s.loop(ctx)
	return nil
}

// Stop stops the loop and waits for an in-flight sweep
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("ExpirySweeper stopped")
}

// Name returns the worker name for identification
func (s *ExpirySweeper) Name() string {
	return "ExpirySweeper"
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep deletes one batch of expired files and returns how many were removed
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.config.TTL)
	records, err := s.index.ListExpired(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to list expired files", zap.Error(err))
		return 0
	}
	if len(records) == 0 {
		return 0
	}

	removed := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		err := s.files.DeleteFile(ctx, rec.Token)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, storage.ErrNotFound):
			// gone from disk already, drop the stale row
			if err := s.index.Delete(ctx, rec.Token); err != nil {
				s.logger.Warn("Failed to drop stale file record",
					zap.String("filename", rec.Filename),
					zap.Error(err))
				continue
			}
			removed++
		default:
			s.logger.Warn("Failed to delete expired file",
				zap.String("filename", rec.Filename),
				zap.Error(err))
		}
	}

	s.logger.Info("Expired files swept",
		zap.Int("candidates", len(records)),
		zap.Int("removed", removed))
	return removed
}
