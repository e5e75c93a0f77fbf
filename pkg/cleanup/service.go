// Package cleanup provides a background retention sweep: accounts that
// requested deletion (spec.md §4.A) are purged once their grace window
// has elapsed. Grounded on the teacher's pkg/cleanup.Service loop shape
// (context-cancel + done-channel ticker, idempotent per-tick work safe
// to run from multiple instances).
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/pkg/accountcache"
)

// Service periodically deletes accounts whose deletion grace window has
// elapsed.
type Service struct {
	db         *ent.Client
	cache      *accountcache.AccountCache
	graceDelay time.Duration
	interval   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup Service. graceDelay is how long an
// account stays in pending_deletion before being purged; interval is
// how often the sweep runs.
func NewService(db *ent.Client, cache *accountcache.AccountCache, graceDelay, interval time.Duration) *Service {
	return &Service{db: db, cache: cache, graceDelay: graceDelay, interval: interval}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "grace_delay", s.graceDelay, "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.purgePendingDeletions(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgePendingDeletions(ctx)
		}
	}
}

// purgePendingDeletions deletes every account whose deletion_requested_at
// is older than graceDelay. The ON DELETE CASCADE foreign keys of the
// SQL migration remove dependent rows; the cache entry, if any, is
// evicted in the same pass.
func (s *Service) purgePendingDeletions(ctx context.Context) {
	cutoff := time.Now().Add(-s.graceDelay)
	rows, err := s.db.Account.Query().
		Where(
			account.StateEQ(account.StatePendingDeletion),
			account.DeletionRequestedAtLT(cutoff),
		).
		All(ctx)
	if err != nil {
		slog.Error("cleanup: query pending deletions failed", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	for _, row := range rows {
		if err := s.db.Account.DeleteOne(row).Exec(ctx); err != nil {
			slog.Error("cleanup: delete account failed", "account_id", row.ID, "error", err)
			continue
		}
		s.cache.Evict(int64(row.ID))
	}
	slog.Info("cleanup: purged accounts past deletion grace window", "count", len(rows))
}
