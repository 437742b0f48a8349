package insights

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/metrics"
	"github.com/adpulse-org/adpulse/pipeline"
	"github.com/adpulse-org/adpulse/store"
)

// ============================================================================
// HISTORICAL SYNC — Meta/Google window fetch-and-store
// ============================================================================
// A window sync is a window-level replace: delete every existing insight in
// the exact (user, account, window) scope, then insert the fresh fetch. A
// failure between the delete and the insert leaves the window empty until
// the next retry; that is accepted behavior, not a bug. Per-user scoping of
// the delete keeps concurrent syncs for different users from colliding.
// ============================================================================

// Fetcher pulls already-decoded insight rows from a vendor API for one
// account and window. Implementations own pagination, retry, and rate-limit
// concerns; the sync layer only shapes and stores what they return.
type Fetcher interface {
	Platform() pipeline.Platform

	// FetchWindow returns rows keyed by target collection (Meta fills one
	// collection per entity level; Google fills its single collection).
	FetchWindow(ctx context.Context, account Account, startDate, endDate string) (map[string][]pipeline.Doc, error)
}

// Account identifies one syncable vendor account.
type Account struct {
	UserID    string
	AccountID string // ad account id (Meta) or customer id (Google)
}

// Syncer replays vendor windows into the store.
type Syncer struct {
	store    store.Store
	fetchers map[pipeline.Platform]Fetcher
	log      *zap.Logger
}

// NewSyncer creates a Syncer over the given fetchers.
func NewSyncer(st store.Store, fetchers []Fetcher, log *zap.Logger) *Syncer {
	byPlatform := make(map[pipeline.Platform]Fetcher, len(fetchers))
	for _, f := range fetchers {
		byPlatform[f.Platform()] = f
	}
	return &Syncer{store: st, fetchers: byPlatform, log: log}
}

// SyncWindow replaces one (user, account, window) scope with fresh data.
func (s *Syncer) SyncWindow(ctx context.Context, platform pipeline.Platform, acct Account, startDate, endDate string) error {
	fetcher, ok := s.fetchers[platform]
	if !ok {
		return fmt.Errorf("no fetcher registered for platform %q", platform)
	}

	rows, err := fetcher.FetchWindow(ctx, acct, startDate, endDate)
	if err != nil {
		metrics.SyncRuns.WithLabelValues(platform.String(), "fetch_error").Inc()
		return fmt.Errorf("fetch %s window %s..%s: %w", platform, startDate, endDate, err)
	}
	return s.ReplaceWindow(ctx, platform, acct, startDate, endDate, rows)
}

// ReplaceWindow stores already-fetched rows, clearing the window scope first.
// The HTTP sync endpoint calls this directly with rows the caller decoded;
// SyncWindow goes through a registered Fetcher.
func (s *Syncer) ReplaceWindow(ctx context.Context, platform pipeline.Platform, acct Account, startDate, endDate string, rows map[string][]pipeline.Doc) error {
	filter := pipeline.WindowFilter(platform, acct.UserID, acct.AccountID, startDate, endDate)
	var written int64
	for collection, docs := range rows {
		removed, err := s.store.DeleteMany(ctx, collection, filter)
		if err != nil {
			metrics.SyncRuns.WithLabelValues(platform.String(), "store_error").Inc()
			return fmt.Errorf("clear %s window: %w", collection, err)
		}
		if err := s.store.InsertMany(ctx, collection, docs); err != nil {
			metrics.SyncRuns.WithLabelValues(platform.String(), "store_error").Inc()
			return fmt.Errorf("insert %s window: %w", collection, err)
		}
		written += int64(len(docs))
		s.log.Debug("window replaced",
			zap.String("collection", collection),
			zap.Int64("removed", removed),
			zap.Int("inserted", len(docs)))
	}

	metrics.SyncRuns.WithLabelValues(platform.String(), "ok").Inc()
	metrics.SyncRowsWritten.WithLabelValues(platform.String()).Add(float64(written))
	s.log.Info("historical window synced",
		zap.String("platform", platform.String()),
		zap.String("user_id", acct.UserID),
		zap.String("window", startDate+".."+endDate),
		zap.Int64("rows", written))
	return nil
}

// SyncAll runs a window sync for every account, isolating failures per
// account: one user's broken token never aborts the rest of the batch.
func (s *Syncer) SyncAll(ctx context.Context, platform pipeline.Platform, accounts []Account, startDate, endDate string) {
	for _, acct := range accounts {
		if err := s.SyncWindow(ctx, platform, acct, startDate, endDate); err != nil {
			s.log.Error("account sync failed, continuing batch",
				zap.String("platform", platform.String()),
				zap.String("user_id", acct.UserID),
				zap.Error(err))
		}
	}
}
