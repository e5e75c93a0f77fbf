// Package interactions implements spec.md §4.G: the account-pair
// interaction state machine (like → match, block), the daily-like
// quota with lazy scheduled reset, and the match-only message flow.
package interactions

import (
	"context"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/ent/accountinteraction"
	"github.com/afrodite/datingcore/ent/accountinteractionindex"
	"github.com/afrodite/datingcore/ent/dailylikesleft"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/writeexec"
)

// State mirrors the AccountInteraction.state enum of spec.md §3.
type State string

const (
	StateEmpty State = "empty"
	StateLike  State = "like"
	StateBlock State = "block"
	StateMatch State = "match"
)

// Limits configures the daily-like quota reset policy.
type Limits struct {
	DailyLikeQuota int16
	ResetHourUTC   int
	ResetMinuteUTC int
}

// Engine runs the like/block/match state machine and quota bookkeeping
// through the write executor.
type Engine struct {
	db       *ent.Client
	exec     *writeexec.Executor
	limits   Limits
	onCommit CommitHooks
}

// CommitHooks lets the caller wire cache mutation and event publication
// without this package importing accountcache/eventbus directly (kept
// decoupled the way the teacher's queue package takes an interface for
// its event publisher).
type CommitHooks struct {
	// OnMatch fires for both accounts when a reciprocal like resolves
	// to Match.
	OnMatch func(a, b int64)
	// OnLikeReceived fires for the receiver of a first-time like.
	OnLikeReceived func(receiver int64)
	// OnBlocked fires for the blocked account.
	OnBlocked func(blocked int64)
	// OnQuotaChanged fires for the account whose DailyLikesLeft changed.
	OnQuotaChanged func(account int64, likesLeft int16, syncVersion uint32)
	// OnMessage fires for the recipient of a newly stored message.
	OnMessage func(recipient int64, interactionID int, messageNumber int32)
}

// New builds an Engine.
func New(db *ent.Client, exec *writeexec.Executor, limits Limits, hooks CommitHooks) *Engine {
	return &Engine{db: db, exec: exec, limits: limits, onCommit: hooks}
}

func orderedPair(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}

// findOrCreateInteraction resolves the unordered-pair interaction row,
// creating it (and its two index rows) in the same transaction if it
// does not yet exist. Must run inside the write executor's critical
// section.
func findOrCreateInteraction(ctx context.Context, tx *ent.Tx, a, b int64) (*ent.AccountInteraction, error) {
	first, second := orderedPair(a, b)

	idxRow, err := tx.AccountInteractionIndex.Query().
		Where(
			accountinteractionindex.AccountIDFirst(first),
			accountinteractionindex.AccountIDSecond(second),
		).
		Only(ctx)
	if ent.IsNotFound(err) {
		row, cerr := tx.AccountInteraction.Create().
			SetAccountIDSender(a).
			SetAccountIDReceiver(b).
			Save(ctx)
		if cerr != nil {
			return nil, apperrors.Wrap(apperrors.ErrDataError, cerr)
		}
		if _, cerr := tx.AccountInteractionIndex.Create().
			SetAccountIDFirst(first).
			SetAccountIDSecond(second).
			SetInteractionID(row.ID).
			Save(ctx); cerr != nil {
			return nil, apperrors.Wrap(apperrors.ErrDataError, cerr)
		}
		return row, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	return tx.AccountInteraction.Get(ctx, idxRow.InteractionID)
}

// Like implements the like(sender → receiver) transition of spec.md
// §4.G.
func (e *Engine) Like(ctx context.Context, sender, receiver int64) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		row, err := findOrCreateInteraction(ctx, tx, sender, receiver)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, err
		}

		var (
			becameMatch   bool
			consumesQuota bool
		)

		switch State(row.State) {
		case StateEmpty:
			row, err = tx.AccountInteraction.UpdateOne(row).
				SetState(accountinteraction.StateLike).
				SetAccountIDSender(sender).
				SetAccountIDReceiver(receiver).
				Save(ctx)
			consumesQuota = true
		case StateLike:
			if row.AccountIDSender == receiver && row.AccountIDReceiver == sender {
				row, err = tx.AccountInteraction.UpdateOne(row).
					SetState(accountinteraction.StateMatch).
					Save(ctx)
				becameMatch = true
			}
			// same-direction like: idempotent, no row change.
		case StateBlock:
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.ErrNotAllowed
		case StateMatch:
			// idempotent success
		}
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		var likesLeft int16
		var syncVer uint32
		if consumesQuota {
			likesLeft, syncVer, err = decrementQuotaLocked(ctx, tx, sender, e.limits)
			if err != nil {
				_ = tx.Rollback()
				return writeexec.Result[struct{}]{}, err
			}
		}

		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[struct{}]{
			Events: func() {
				if becameMatch {
					if e.onCommit.OnMatch != nil {
						e.onCommit.OnMatch(sender, receiver)
					}
				} else if consumesQuota && e.onCommit.OnLikeReceived != nil {
					e.onCommit.OnLikeReceived(receiver)
				}
				if consumesQuota && e.onCommit.OnQuotaChanged != nil {
					e.onCommit.OnQuotaChanged(sender, likesLeft, syncVer)
				}
			},
		}, nil
	})
	return err
}

// Block implements the block flow of spec.md §4.G: sets state=Block and
// overrides any prior Like; does not restore quota.
func (e *Engine) Block(ctx context.Context, blocker, blocked int64) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		row, err := findOrCreateInteraction(ctx, tx, blocker, blocked)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, err
		}

		if _, err := tx.AccountInteraction.UpdateOne(row).
			SetState(accountinteraction.StateBlock).
			SetAccountIDSender(blocker).
			SetAccountIDReceiver(blocked).
			Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[struct{}]{
			Events: func() {
				if e.onCommit.OnBlocked != nil {
					e.onCommit.OnBlocked(blocked)
				}
			},
		}, nil
	})
	return err
}

// SendMessage implements the message flow of spec.md §4.G: only
// permitted when state=Match, numbered consecutively from 1.
func (e *Engine) SendMessage(ctx context.Context, sender, receiver int64, text []byte) (int32, error) {
	return writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[int32], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[int32]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		row, err := findOrCreateInteraction(ctx, tx, sender, receiver)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[int32]{}, err
		}
		if State(row.State) != StateMatch {
			_ = tx.Rollback()
			return writeexec.Result[int32]{}, apperrors.ErrNotAllowed
		}

		nextNumber := row.MessageCounter + 1
		row, err = tx.AccountInteraction.UpdateOne(row).
			SetMessageCounter(nextNumber).
			Save(ctx)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[int32]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		if _, err := tx.PendingMessage.Create().
			SetInteractionID(row.ID).
			SetAccountIDSender(sender).
			SetAccountIDReceiver(receiver).
			SetMessageNumber(nextNumber).
			SetMessageText(text).
			Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[int32]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		if err := tx.Commit(); err != nil {
			return writeexec.Result[int32]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[int32]{
			Value: nextNumber,
			Events: func() {
				if e.onCommit.OnMessage != nil {
					e.onCommit.OnMessage(receiver, row.ID, nextNumber)
				}
			},
		}, nil
	})
}

// IsBlocked reports whether a and b have a Block-state interaction, in
// either direction. Read-only; does not go through the write executor.
// Used by the profile iterator's not-blocked filter predicate
// (spec.md §4.F).
func (e *Engine) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	first, second := orderedPair(a, b)
	idxRow, err := e.db.AccountInteractionIndex.Query().
		Where(
			accountinteractionindex.AccountIDFirst(first),
			accountinteractionindex.AccountIDSecond(second),
		).
		Only(ctx)
	if ent.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	row, err := e.db.AccountInteraction.Get(ctx, idxRow.InteractionID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	return State(row.State) == StateBlock, nil
}

// nextResetTime computes the next occurrence of the configured
// reset-time-of-day strictly after `after + 1s`, per spec.md §4.G.
func nextResetTime(after time.Time, limits Limits) time.Time {
	base := after.Add(time.Second).UTC()
	candidate := time.Date(base.Year(), base.Month(), base.Day(), limits.ResetHourUTC, limits.ResetMinuteUTC, 0, 0, time.UTC)
	if !candidate.After(base) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// decrementQuotaLocked applies the lazy-reset rule and then decrements
// likes_left by one, rejecting with ErrNotAllowed if the quota is
// exhausted. Must run inside the write executor's critical section.
func decrementQuotaLocked(ctx context.Context, tx *ent.Tx, accountID int64, limits Limits) (int16, uint32, error) {
	row, err := tx.DailyLikesLeft.Query().
		Where(dailylikesleft.HasAccountWith(account.ID(int(accountID)))).
		Only(ctx)
	if ent.IsNotFound(err) {
		row, err = tx.DailyLikesLeft.Create().
			SetAccountID(int(accountID)).
			SetLikesLeft(limits.DailyLikeQuota).
			SetLatestResetTime(time.Now().UTC()).
			Save(ctx)
	}
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	likesLeft := row.LikesLeft
	resetTime := row.LatestResetTime
	syncVer := row.SyncVersion

	if !time.Now().UTC().Before(nextResetTime(resetTime, limits)) {
		likesLeft = limits.DailyLikeQuota
		resetTime = nextResetTime(resetTime, limits)
		if syncVer < ^uint32(0) {
			syncVer++
		}
	}

	if likesLeft <= 0 {
		return 0, 0, apperrors.ErrNotAllowed
	}
	likesLeft--
	if syncVer < ^uint32(0) {
		syncVer++
	}

	row, err = tx.DailyLikesLeft.UpdateOne(row).
		SetLikesLeft(likesLeft).
		SetLatestResetTime(resetTime).
		SetSyncVersion(syncVer).
		Save(ctx)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	return row.LikesLeft, row.SyncVersion, nil
}
