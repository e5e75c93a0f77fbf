// Package push implements the push-notification pipeline of spec.md
// §4.J: the promoted-event send path, hourly reconciliation of
// unacknowledged pending work to the database, and VAPID key-hash
// rotation. Grounded on pkg/moderation's write-executor usage for its
// DB writes, and on pkg/eventbus for the PromotionSink it implements.
package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/ent/pushnotificationstate"
	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/afrodite/datingcore/pkg/writeexec"
)

// Flag bits index the six promotable event kinds of spec.md §4.I, in
// the fixed order the spec lists them.
const (
	FlagNewMessage Flag = 1 << iota
	FlagProfileStringModerationCompleted
	FlagMediaContentModerationCompleted
	FlagReceivedLikesChanged
	FlagAutomaticProfileSearchCompleted
	FlagAdminNotification
)

// Flag is one bit of the pending/sent flag bitsets.
type Flag = uint32

func flagForKind(kind eventbus.Kind) (Flag, bool) {
	switch kind {
	case eventbus.KindNewMessageReceived:
		return FlagNewMessage, true
	case eventbus.KindProfileStringModerationComplete:
		return FlagProfileStringModerationCompleted, true
	case eventbus.KindMediaContentModerationComplete:
		return FlagMediaContentModerationCompleted, true
	case eventbus.KindReceivedLikesChanged:
		return FlagReceivedLikesChanged, true
	case eventbus.KindAutomaticProfileSearchComplete:
		return FlagAutomaticProfileSearchCompleted, true
	case eventbus.KindAdminNotification:
		return FlagAdminNotification, true
	default:
		return 0, false
	}
}

// Provider sends a coalesced push notification for one or more flags to
// a device, returning the notification token the client can use to
// correlate delivery receipts. No example repo in the training pack
// carries an APNs/FCM client, so this is a narrow interface the binary
// wires to whatever provider it's deployed against; see DESIGN.md.
type Provider interface {
	Send(ctx context.Context, deviceToken string, flags uint32) (notificationToken string, err error)
}

// sendWorkers bounds how many concurrent provider calls the engine
// makes; the channel itself smooths bursts without blocking Promote.
const sendWorkers = 4
const sendQueueDepth = 256

// Engine implements eventbus.PromotionSink and owns the send/reconcile
// loops of spec.md §4.J.
type Engine struct {
	cache    *accountcache.AccountCache
	db       *ent.Client
	exec     *writeexec.Executor
	provider Provider

	workCh chan int64
	wg     sync.WaitGroup
	quit   chan struct{}
	once   sync.Once
}

// New creates an Engine and starts its send workers. Call Shutdown to
// stop them.
func New(cache *accountcache.AccountCache, db *ent.Client, exec *writeexec.Executor, provider Provider) *Engine {
	e := &Engine{
		cache:    cache,
		db:       db,
		exec:     exec,
		provider: provider,
		workCh:   make(chan int64, sendQueueDepth),
		quit:     make(chan struct{}),
	}
	for i := 0; i < sendWorkers; i++ {
		e.wg.Add(1)
		go e.sendLoop()
	}
	return e
}

// Promote implements eventbus.PromotionSink. It ORs the event kind's bit
// into the account's pending_flags and, if the account has no active
// WebSocket session, schedules a provider send.
func (e *Engine) Promote(accountID int64, kind eventbus.Kind) {
	bit, ok := flagForKind(kind)
	if !ok {
		return
	}

	var needsSend bool
	found := e.cache.ReadByID(accountID, func(entry *accountcache.Entry) {
		needsSend = entry.DeliveryMode == accountcache.Offline
	})
	if !found {
		return
	}

	e.cache.WriteByID(accountID, func() *accountcache.Entry {
		return &accountcache.Entry{AccountID: accountID}
	}, func(entry *accountcache.Entry) {
		entry.PendingFlags |= bit
	})

	if !needsSend {
		return
	}
	select {
	case e.workCh <- accountID:
	default:
		slog.Warn("push: send queue full, dropping immediate send attempt", "account_id", accountID)
	}
}

// sendLoop is one of the engine's fixed worker goroutines. It reads an
// account id, looks up its outstanding (pending \ sent) flags and
// device token, and — if there's anything new — makes one coalesced
// provider call, per spec.md §4.J's "coalesce multiple flags into one
// provider call" rule.
func (e *Engine) sendLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quit:
			return
		case accountID := <-e.workCh:
			e.trySend(accountID)
		}
	}
}

func (e *Engine) trySend(accountID int64) {
	var deviceToken string
	var outstanding uint32
	found := e.cache.ReadByID(accountID, func(entry *accountcache.Entry) {
		outstanding = entry.PendingFlags &^ entry.SentFlags
	})
	if !found || outstanding == 0 {
		return
	}

	row, err := e.db.PushNotificationState.Query().
		Where(pushnotificationstate.HasAccountWith(account.ID(int(accountID)))).
		Only(context.Background())
	if err != nil || row.DeviceToken == "" {
		return
	}
	deviceToken = row.DeviceToken

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.provider.Send(ctx, deviceToken, outstanding); err != nil {
		slog.Warn("push: provider send failed", "account_id", accountID, "error", err)
		return
	}

	e.cache.WriteByID(accountID, func() *accountcache.Entry {
		return &accountcache.Entry{AccountID: accountID}
	}, func(entry *accountcache.Entry) {
		entry.SentFlags |= outstanding
	})
}

// Reconcile walks every cached entry and persists pending_flags \
// sent_flags to the database, so a process restart doesn't lose
// unacknowledged work. Intended to run on an hourly ticker (spec.md
// §4.J's reference cadence); callers own the scheduling.
func (e *Engine) Reconcile(ctx context.Context) error {
	type update struct {
		accountID int64
		flags     uint32
	}
	var updates []update
	e.cache.ReadAll(func(id int64, entry *accountcache.Entry) {
		if unsent := entry.PendingFlags &^ entry.SentFlags; unsent != 0 {
			updates = append(updates, update{accountID: id, flags: unsent})
		}
	})

	for _, u := range updates {
		_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
			if _, err := e.db.PushNotificationState.Update().
				Where(pushnotificationstate.HasAccountWith(account.ID(int(u.accountID)))).
				SetPendingFlags(u.flags).
				Save(ctx); err != nil {
				return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
			}
			return writeexec.Result[struct{}]{}, nil
		})
		if err != nil {
			slog.Warn("push: reconcile failed for account", "account_id", u.accountID, "error", err)
		}
	}
	return nil
}

// RotateVAPIDKey bumps info_sync_version for every account so connected
// and reconnecting clients refetch the new key, per spec.md §4.J's key
// rotation rule ("bumps sync version but does not force a re-handshake",
// SPEC_FULL.md Open Question Decision #4).
func (e *Engine) RotateVAPIDKey(ctx context.Context) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		rows, err := e.db.PushNotificationState.Query().WithAccount().All(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		accountIDs := make([]int64, 0, len(rows))
		for _, row := range rows {
			if _, err := e.db.PushNotificationState.UpdateOne(row).
				SetInfoSyncVersion(saturatingInc(row.InfoSyncVersion)).
				Save(ctx); err != nil {
				return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
			}
			accountIDs = append(accountIDs, int64(row.Edges.Account.ID))
		}

		return writeexec.Result[struct{}]{
			CacheMutation: func() {
				for _, accID := range accountIDs {
					e.cache.WriteByID(accID, func() *accountcache.Entry {
						return &accountcache.Entry{AccountID: accID}
					}, func(entry *accountcache.Entry) {
						entry.InfoSyncVer = saturatingInc(entry.InfoSyncVer)
					})
				}
			},
		}, nil
	})
	return err
}

func saturatingInc(v uint32) uint32 {
	if v == ^uint32(0) {
		return v
	}
	return v + 1
}

// Shutdown stops the send workers, waiting for in-flight sends to
// finish.
func (e *Engine) Shutdown() {
	e.once.Do(func() { close(e.quit) })
	e.wg.Wait()
}
