// Package syncer orchestrates the client side of a sync cycle: collect
// local changes, exchange them with the server, apply the returned delta
// and advance the watermark.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tabsync/tabsync/internal/client/storage"
	"github.com/tabsync/tabsync/pkg/api"
)

// Transport is one binding of the sync protocol.
type Transport interface {
	Sync(ctx context.Context, req *api.SyncRequest) (*api.SyncResponse, error)
}

// ErrSyncInFlight is returned when a cycle is skipped because another one
// is still running. Overlapping triggers coalesce into the running cycle's
// successor; the skipped caller loses nothing.
var ErrSyncInFlight = errors.New("sync already in flight")

// Result describes one completed sync cycle.
type Result struct {
	Pushed          int
	Pulled          int
	Applied         int
	DroppedValues   int
	ServerTimestamp int64
	UsedFallback    bool
}

// Service runs sync cycles against the server.
type Service struct {
	logger     *slog.Logger
	replica    storage.ReplicaStorage
	watermarks storage.WatermarkStorage
	realtime   Transport // optional; nil disables the websocket binding
	unary      Transport

	// single-flight guard: at most one sync per client at a time
	mu      sync.Mutex
	trigger chan struct{}
}

// NewService creates a sync service. realtime may be nil; unary must not be.
func NewService(logger *slog.Logger, replica storage.ReplicaStorage, watermarks storage.WatermarkStorage, realtime, unary Transport) *Service {
	return &Service{
		logger:     logger,
		replica:    replica,
		watermarks: watermarks,
		realtime:   realtime,
		unary:      unary,
		trigger:    make(chan struct{}, 1),
	}
}

// Sync runs one full cycle. If another cycle is in flight it returns
// ErrSyncInFlight without doing anything. The watermark is only advanced
// after the response has been applied; any failure leaves it untouched so
// the next cycle retries the same exchange, which is safe because all
// writes are id-keyed upserts.
func (s *Service) Sync(ctx context.Context) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer s.mu.Unlock()

	since, err := s.watermarks.GetLastSyncTimestamp(ctx)
	if err != nil {
		s.logger.Warn("Failed to read last sync timestamp, using 0", "error", err)
		since = 0
	}

	changes, err := s.replica.CollectChangesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to collect local changes: %w", err)
	}

	req := &api.SyncRequest{
		LastSyncTimestamp: since,
		Lists:             changes.Lists,
		Fields:            changes.Fields,
		Items:             changes.Items,
		ItemValues:        changes.ItemValues,
	}
	pushed := len(req.Lists) + len(req.Fields) + len(req.Items) + len(req.ItemValues)

	s.logger.Debug("Starting sync cycle", "since", since, "pushed", pushed)

	resp, usedFallback, err := s.exchange(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sync exchange failed: %w", err)
	}

	applied, err := s.replica.ApplyDelta(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to apply server delta: %w", err)
	}

	if applied.DroppedValues > 0 {
		s.logger.Warn("Dropped orphaned item values", "count", applied.DroppedValues)
	}

	if err := s.watermarks.SaveLastSyncTimestamp(ctx, resp.ServerTimestamp); err != nil {
		// Not fatal: the data is applied, and an unadvanced watermark only
		// means the next cycle re-exchanges the same rows.
		s.logger.Warn("Failed to save last sync timestamp", "error", err)
	}

	result := &Result{
		Pushed:          pushed,
		Pulled:          len(resp.Lists) + len(resp.Fields) + len(resp.Items) + len(resp.ItemValues),
		Applied:         applied.Applied,
		DroppedValues:   applied.DroppedValues,
		ServerTimestamp: resp.ServerTimestamp,
		UsedFallback:    usedFallback,
	}

	s.logger.Info("Sync completed",
		"pushed", result.Pushed,
		"pulled", result.Pulled,
		"dropped_values", result.DroppedValues,
		"server_timestamp", result.ServerTimestamp,
		"used_fallback", result.UsedFallback)

	return result, nil
}

// exchange tries the realtime binding first and falls back to the unary
// one on any failure, timeout, error frame or policy-violation close.
// usedFallback is false only when the realtime binding answered.
func (s *Service) exchange(ctx context.Context, req *api.SyncRequest) (resp *api.SyncResponse, usedFallback bool, err error) {
	if s.realtime != nil {
		resp, err = s.realtime.Sync(ctx, req)
		if err == nil {
			return resp, false, nil
		}
		s.logger.Warn("Realtime transport failed, falling back", "error", err)
	}

	resp, err = s.unary.Sync(ctx, req)
	return resp, s.realtime != nil, err
}

// TriggerSync requests an immediate cycle from the running loop. Non
// blocking; triggers arriving while a cycle runs coalesce into one.
func (s *Service) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run syncs once at start, then on every tick and trigger until the
// context is canceled. Cycle failures are logged and swallowed: local edits
// stay responsive and the next cycle retries from unchanged state.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
		s.logger.Warn("Background sync failed", "error", err)
	}
}
