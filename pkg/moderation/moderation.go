// Package moderation implements spec.md §4.H: the three parallel
// moderation queues (profile-name, profile-text, profile-content), the
// transition DAG each item's state follows, and the name allowlist.
package moderation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/ent/mediacontent"
	"github.com/afrodite/datingcore/ent/profile"
	"github.com/afrodite/datingcore/ent/profilemoderation"
	"github.com/afrodite/datingcore/ent/profilenameallowlist"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/writeexec"
	"github.com/google/uuid"
)

// ContentType distinguishes the two string queues of spec.md §3.
type ContentType string

const (
	ContentTypeName ContentType = "name"
	ContentTypeText ContentType = "text"
)

// State mirrors ModerationState of spec.md §3.
type State string

const (
	StateWaitingBotOrHuman State = "waiting_bot_or_human"
	StateWaitingHuman      State = "waiting_human"
	StateAcceptedByBot     State = "accepted_by_bot"
	StateAcceptedByHuman   State = "accepted_by_human"
	StateAcceptedAllowlist State = "accepted_by_allowlist"
	StateRejectedByBot     State = "rejected_by_bot"
	StateRejectedByHuman   State = "rejected_by_human"
)

// QueuePageLimit is the fixed page size of spec.md §4.H.
const QueuePageLimit = 25

// Moderator identifies who is applying a decision.
type Moderator struct {
	AccountID int64
	IsBot     bool
}

// QueueItem is one row returned from a queue listing.
type QueueItem struct {
	AccountID int64
	State     State
	CreatedAt time.Time
}

// CommitHooks lets callers wire cache/event side effects without this
// package importing accountcache/eventbus directly.
type CommitHooks struct {
	// OnVisibilityResolved fires when acceptance clears the last
	// blocking artifact and the account's visibility transitions
	// Pending→Public/Private (spec.md §4.H). newVisibility is the
	// resolved, non-pending value.
	OnVisibilityResolved func(accountID int64, newVisibility string, newProfileVersion [16]byte)
	// OnModerationCompleted fires after every state change of a
	// profile-name or profile-text item (submission, escalation to human
	// moderation, accept/reject), regardless of whether it resolved
	// visibility. Media decisions do not fire it.
	OnModerationCompleted func(accountID int64, contentType ContentType, newState State)
}

// Engine runs the moderation DAG through the write executor.
type Engine struct {
	db       *ent.Client
	exec     *writeexec.Executor
	onCommit CommitHooks

	allowlistMu sync.RWMutex
	allowlist   map[string]struct{} // in-memory fast-path allowlist cache
}

// New builds a moderation Engine and primes the in-memory allowlist from
// the DB.
func New(ctx context.Context, db *ent.Client, exec *writeexec.Executor, hooks CommitHooks) (*Engine, error) {
	e := &Engine{db: db, exec: exec, onCommit: hooks, allowlist: make(map[string]struct{})}

	rows, err := db.ProfileNameAllowlist.Query().All(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	for _, r := range rows {
		e.allowlist[r.ProfileName] = struct{}{}
	}
	return e, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// isAllowlistedTx checks the in-memory cache first, then the DB, per
// spec.md §4.H's "memory or DB" lookup rule.
func (e *Engine) isAllowlistedTx(ctx context.Context, tx *ent.Tx, name string) (bool, error) {
	normalized := normalizeName(name)

	e.allowlistMu.RLock()
	_, ok := e.allowlist[normalized]
	e.allowlistMu.RUnlock()
	if ok {
		return true, nil
	}

	exists, err := tx.ProfileNameAllowlist.Query().
		Where(profilenameallowlist.ProfileName(normalized)).
		Exist(ctx)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	return exists, nil
}

// SubmitString implements the "create/reset" transition for a
// profile-name or profile-text artifact: state becomes
// WaitingBotOrHumanModeration, or AcceptedByAllowlist immediately for an
// allowlisted name.
func (e *Engine) SubmitString(ctx context.Context, accountID int64, contentType ContentType, value string) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		newState := StateWaitingBotOrHuman
		if contentType == ContentTypeName {
			allowed, aerr := e.isAllowlistedTx(ctx, tx, value)
			if aerr != nil {
				_ = tx.Rollback()
				return writeexec.Result[struct{}]{}, aerr
			}
			if allowed {
				newState = StateAcceptedAllowlist
			}
		}

		existing, err := tx.ProfileModeration.Query().
			Where(
				profilemoderation.ContentTypeEQ(profilemoderation.ContentType(contentType)),
				profilemoderation.HasAccountWith(account.ID(int(accountID))),
			).
			Only(ctx)

		switch {
		case ent.IsNotFound(err):
			_, err = tx.ProfileModeration.Create().
				SetAccountID(int(accountID)).
				SetContentType(profilemoderation.ContentType(contentType)).
				SetState(profilemoderation.State(newState)).
				Save(ctx)
		case err == nil:
			_, err = tx.ProfileModeration.UpdateOne(existing).
				SetState(profilemoderation.State(newState)).
				ClearModeratorAccountID().
				ClearRejectedReasonCategory().
				ClearRejectedReasonDetails().
				Save(ctx)
		}
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[struct{}]{
			Events: func() {
				if e.onCommit.OnModerationCompleted != nil {
					e.onCommit.OnModerationCompleted(accountID, contentType, newState)
				}
			},
		}, nil
	})
	return err
}

// ModerateString applies an accept/reject decision to an account's
// profile-name or profile-text item.
func (e *Engine) ModerateString(ctx context.Context, accountID int64, contentType ContentType, mod Moderator, accept bool, rejectCategory int16, rejectDetails string) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		row, err := tx.ProfileModeration.Query().
			Where(
				profilemoderation.ContentTypeEQ(profilemoderation.ContentType(contentType)),
				profilemoderation.HasAccountWith(account.ID(int(accountID))),
			).
			Only(ctx)
		if err != nil {
			_ = tx.Rollback()
			if ent.IsNotFound(err) {
				return writeexec.Result[struct{}]{}, apperrors.ErrNotFound
			}
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		var newState State
		upd := tx.ProfileModeration.UpdateOne(row).
			SetModeratorAccountID(mod.AccountID)
		if accept {
			if mod.IsBot {
				newState = StateAcceptedByBot
			} else {
				newState = StateAcceptedByHuman
			}
			upd = upd.SetState(profilemoderation.State(newState)).
				ClearRejectedReasonCategory().
				ClearRejectedReasonDetails()
		} else {
			if mod.IsBot {
				newState = StateRejectedByBot
			} else {
				newState = StateRejectedByHuman
			}
			upd = upd.SetState(profilemoderation.State(newState)).
				SetRejectedReasonCategory(rejectCategory).
				SetRejectedReasonDetails(rejectDetails)
		}
		if _, err := upd.Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		visibilityResolved, newVisibility, newVersion, err := maybeResolveVisibility(ctx, tx, accountID)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, err
		}

		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[struct{}]{
			Events: func() {
				if e.onCommit.OnModerationCompleted != nil {
					e.onCommit.OnModerationCompleted(accountID, contentType, newState)
				}
				if visibilityResolved && e.onCommit.OnVisibilityResolved != nil {
					e.onCommit.OnVisibilityResolved(accountID, newVisibility, newVersion)
				}
			},
		}, nil
	})
	return err
}

// MoveStringToHumanModeration implements the "report arrived" escalation
// of spec.md §4.H: state becomes WaitingHumanModeration regardless of
// prior state.
func (e *Engine) MoveStringToHumanModeration(ctx context.Context, accountID int64, contentType ContentType) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		row, err := tx.ProfileModeration.Query().
			Where(
				profilemoderation.ContentTypeEQ(profilemoderation.ContentType(contentType)),
				profilemoderation.HasAccountWith(account.ID(int(accountID))),
			).
			Only(ctx)
		if err != nil {
			_ = tx.Rollback()
			if ent.IsNotFound(err) {
				return writeexec.Result[struct{}]{}, apperrors.ErrNotFound
			}
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		if _, err := tx.ProfileModeration.UpdateOne(row).
			SetState(profilemoderation.StateWaitingHuman).
			Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		return writeexec.Result[struct{}]{
			Events: func() {
				if e.onCommit.OnModerationCompleted != nil {
					e.onCommit.OnModerationCompleted(accountID, contentType, StateWaitingHuman)
				}
			},
		}, nil
	})
	return err
}

// ModerateMedia applies an accept/reject decision to a media-content
// item; media has no allowlist state.
func (e *Engine) ModerateMedia(ctx context.Context, mediaID int, mod Moderator, accept bool, rejectCategory int16, rejectDetails string) error {
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := e.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		row, err := tx.MediaContent.Query().
			Where(mediacontent.IDEQ(mediaID)).
			WithAccount().
			Only(ctx)
		if err != nil {
			_ = tx.Rollback()
			if ent.IsNotFound(err) {
				return writeexec.Result[struct{}]{}, apperrors.ErrNotFound
			}
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		accountID := int64(row.Edges.Account.ID)

		upd := tx.MediaContent.UpdateOne(row).SetModeratorAccountID(mod.AccountID)
		if accept {
			if mod.IsBot {
				upd = upd.SetModerationState(mediacontent.ModerationStateAcceptedByBot)
			} else {
				upd = upd.SetModerationState(mediacontent.ModerationStateAcceptedByHuman)
			}
			upd = upd.ClearRejectedReasonCategory().ClearRejectedReasonDetails()
		} else {
			if mod.IsBot {
				upd = upd.SetModerationState(mediacontent.ModerationStateRejectedByBot)
			} else {
				upd = upd.SetModerationState(mediacontent.ModerationStateRejectedByHuman)
			}
			upd = upd.SetRejectedReasonCategory(rejectCategory).SetRejectedReasonDetails(rejectDetails)
		}
		if _, err := upd.Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		visibilityResolved, newVisibility, newVersion, err := maybeResolveVisibility(ctx, tx, accountID)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, err
		}

		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[struct{}]{
			Events: func() {
				if visibilityResolved && e.onCommit.OnVisibilityResolved != nil {
					e.onCommit.OnVisibilityResolved(accountID, newVisibility, newVersion)
				}
			},
		}, nil
	})
	return err
}

// maybeResolveVisibility implements spec.md §4.H's side effect: when
// name, first content, and (if required) security content are all
// accepted, flip Pending→Public/Private and rotate the profile version.
// Must run inside the write executor's critical section.
func maybeResolveVisibility(ctx context.Context, tx *ent.Tx, accountID int64) (bool, string, [16]byte, error) {
	acc, err := tx.Account.Get(ctx, int(accountID))
	if err != nil {
		return false, "", [16]byte{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	var target account.Visibility
	switch acc.Visibility {
	case account.VisibilityPendingPublic:
		target = account.VisibilityPublic
	case account.VisibilityPendingPrivate:
		target = account.VisibilityPrivate
	default:
		return false, "", [16]byte{}, nil
	}

	nameOK, err := stringAccepted(ctx, tx, accountID, ContentTypeName)
	if err != nil {
		return false, "", [16]byte{}, err
	}
	if !nameOK {
		return false, "", [16]byte{}, nil
	}

	initialContentOK, err := tx.MediaContent.Query().
		Where(
			mediacontent.HasAccountWith(account.ID(int(accountID))),
			mediacontent.IsInitialContent(true),
			mediacontent.ModerationStateIn(
				mediacontent.ModerationStateAcceptedByBot,
				mediacontent.ModerationStateAcceptedByHuman,
			),
		).
		Exist(ctx)
	if err != nil {
		return false, "", [16]byte{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if !initialContentOK {
		return false, "", [16]byte{}, nil
	}

	securityOK, err := securityContentAccepted(ctx, tx, accountID)
	if err != nil {
		return false, "", [16]byte{}, err
	}
	if !securityOK {
		return false, "", [16]byte{}, nil
	}

	if _, err := tx.Account.UpdateOne(acc).SetVisibility(target).Save(ctx); err != nil {
		return false, "", [16]byte{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	newVersion := uuid.New()
	prof, err := tx.Profile.Query().Where(profile.HasAccountWith(account.ID(int(accountID)))).Only(ctx)
	if err != nil {
		return false, "", [16]byte{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if _, err := tx.Profile.UpdateOne(prof).SetVersion(newVersion).Save(ctx); err != nil {
		return false, "", [16]byte{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	return true, string(target), newVersion, nil
}

func stringAccepted(ctx context.Context, tx *ent.Tx, accountID int64, contentType ContentType) (bool, error) {
	return tx.ProfileModeration.Query().
		Where(
			profilemoderation.ContentTypeEQ(profilemoderation.ContentType(contentType)),
			profilemoderation.HasAccountWith(account.ID(int(accountID))),
			profilemoderation.StateIn(
				profilemoderation.StateAcceptedByBot,
				profilemoderation.StateAcceptedByHuman,
				profilemoderation.StateAcceptedByAllowlist,
			),
		).
		Exist(ctx)
}

// securityContentAccepted reports whether security content gating
// applies and, if so, whether it has been accepted. Accounts with no
// security-content row don't require one.
func securityContentAccepted(ctx context.Context, tx *ent.Tx, accountID int64) (bool, error) {
	hasSecurity, err := tx.MediaContent.Query().
		Where(
			mediacontent.HasAccountWith(account.ID(int(accountID))),
			mediacontent.IsSecurityContent(true),
		).
		Exist(ctx)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if !hasSecurity {
		return true, nil
	}
	return tx.MediaContent.Query().
		Where(
			mediacontent.HasAccountWith(account.ID(int(accountID))),
			mediacontent.IsSecurityContent(true),
			mediacontent.ModerationStateIn(
				mediacontent.ModerationStateAcceptedByBot,
				mediacontent.ModerationStateAcceptedByHuman,
			),
		).
		Exist(ctx)
}

// AddToAllowlist performs the upsert-do-nothing add of spec.md §4.H.
func (e *Engine) AddToAllowlist(ctx context.Context, name string, creatorAccountID, moderatorAccountID int64) error {
	normalized := normalizeName(name)
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		err := e.db.ProfileNameAllowlist.Create().
			SetProfileName(normalized).
			SetNameCreatorAccountID(creatorAccountID).
			SetNameModeratorAccountID(moderatorAccountID).
			OnConflict().
			DoNothing().
			Exec(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		return writeexec.Result[struct{}]{
			CacheMutation: func() {
				e.allowlistMu.Lock()
				e.allowlist[normalized] = struct{}{}
				e.allowlistMu.Unlock()
			},
		}, nil
	})
	return err
}

// RemoveFromAllowlist removes a name from both the DB and the in-memory
// cache.
func (e *Engine) RemoveFromAllowlist(ctx context.Context, name string) error {
	normalized := normalizeName(name)
	_, err := writeexec.Submit(e.exec, ctx, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		if _, err := e.db.ProfileNameAllowlist.Delete().
			Where(profilenameallowlist.ProfileName(normalized)).
			Exec(ctx); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		return writeexec.Result[struct{}]{
			CacheMutation: func() {
				e.allowlistMu.Lock()
				delete(e.allowlist, normalized)
				e.allowlistMu.Unlock()
			},
		}, nil
	})
	return err
}

// ListStringQueue lists profile-name or profile-text items visible to
// mod, ordered by created_at then account id ascending, per spec.md
// §4.H's queue-order rule.
func (e *Engine) ListStringQueue(ctx context.Context, contentType ContentType, mod Moderator, showBotModeratable bool) ([]QueueItem, error) {
	states := visibleStates(mod, showBotModeratable)
	rows, err := e.db.ProfileModeration.Query().
		Where(
			profilemoderation.ContentTypeEQ(profilemoderation.ContentType(contentType)),
			profilemoderation.StateIn(states...),
		).
		WithAccount().
		Order(ent.Asc(profilemoderation.FieldCreatedAt), ent.Asc(profilemoderation.FieldAccountID)).
		Limit(QueuePageLimit).
		All(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	return toQueueItems(rows), nil
}

// MediaQueueItem is one row of the media moderation queue: unlike the
// string queues, media items are per-content-row rather than
// per-account, so a moderator may see more than one pending item for
// the same account.
type MediaQueueItem struct {
	MediaID   int
	AccountID int64
	State     string
	CreatedAt time.Time
}

// ListMediaQueue lists pending media-content items visible to mod,
// ordered by created_at then account id ascending, per spec.md §4.H's
// queue-order rule — the media queue's counterpart to ListStringQueue.
func (e *Engine) ListMediaQueue(ctx context.Context, mod Moderator, showBotModeratable bool) ([]MediaQueueItem, error) {
	states := visibleMediaStates(mod, showBotModeratable)
	rows, err := e.db.MediaContent.Query().
		Where(mediacontent.ModerationStateIn(states...)).
		WithAccount().
		Order(ent.Asc(mediacontent.FieldCreatedAt), ent.Asc(mediacontent.FieldAccountID)).
		Limit(QueuePageLimit).
		All(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	return toMediaQueueItems(rows), nil
}

func visibleMediaStates(mod Moderator, showBotModeratable bool) []mediacontent.ModerationState {
	if mod.IsBot {
		return []mediacontent.ModerationState{mediacontent.ModerationStateWaitingBotOrHuman}
	}
	if showBotModeratable {
		return []mediacontent.ModerationState{mediacontent.ModerationStateWaitingHuman, mediacontent.ModerationStateWaitingBotOrHuman}
	}
	return []mediacontent.ModerationState{mediacontent.ModerationStateWaitingHuman}
}

func toMediaQueueItems(rows []*ent.MediaContent) []MediaQueueItem {
	items := make([]MediaQueueItem, 0, len(rows))
	for _, r := range rows {
		var accID int64
		if r.Edges.Account != nil {
			accID = int64(r.Edges.Account.ID)
		}
		items = append(items, MediaQueueItem{MediaID: r.ID, AccountID: accID, State: string(r.ModerationState), CreatedAt: r.CreatedAt})
	}
	return items
}

func visibleStates(mod Moderator, showBotModeratable bool) []profilemoderation.State {
	if mod.IsBot {
		return []profilemoderation.State{profilemoderation.StateWaitingBotOrHuman}
	}
	if showBotModeratable {
		return []profilemoderation.State{profilemoderation.StateWaitingHuman, profilemoderation.StateWaitingBotOrHuman}
	}
	return []profilemoderation.State{profilemoderation.StateWaitingHuman}
}

func toQueueItems(rows []*ent.ProfileModeration) []QueueItem {
	items := make([]QueueItem, 0, len(rows))
	for _, r := range rows {
		var accID int64
		if r.Edges.Account != nil {
			accID = int64(r.Edges.Account.ID)
		}
		items = append(items, QueueItem{AccountID: accID, State: State(r.State), CreatedAt: r.CreatedAt})
	}
	return items
}
