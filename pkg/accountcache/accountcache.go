// Package accountcache implements the in-memory account cache of
// spec.md §4.C: a hot, always-reconstructible-from-the-DB projection of
// per-account state for logged-in or publicly-visible accounts, guarded
// by per-entry locks so reads don't block on unrelated accounts.
package accountcache

import (
	"sync"
	"time"

	"github.com/afrodite/datingcore/ent/schema"
)

// AccountState mirrors the Account.state enum of spec.md §3.
type AccountState string

const (
	StateInitialSetup    AccountState = "initial_setup"
	StateNormal          AccountState = "normal"
	StateBanned          AccountState = "banned"
	StatePendingDeletion AccountState = "pending_deletion"
)

// Visibility mirrors the Account.visibility enum of spec.md §3.
type Visibility string

const (
	VisibilityPrivate        Visibility = "private"
	VisibilityPublic         Visibility = "public"
	VisibilityPendingPrivate Visibility = "pending_private"
	VisibilityPendingPublic  Visibility = "pending_public"
)

// EventDeliveryMode tracks whether an account currently has a connected
// WebSocket session (events deliver in-session) or not (promoted events
// escalate to push per spec.md §4.J).
type EventDeliveryMode int

const (
	Offline EventDeliveryMode = iota
	Connected
)

// ModerationSnapshot is the cache's copy of the three moderation states
// relevant to visibility gating (spec.md §4.H).
type ModerationSnapshot struct {
	NameState    string
	TextState    string
	ContentState string // first/initial content item's state
}

// ProfileProjection is the optional per-account profile state the cache
// keeps hot for the location index and profile iterator.
type ProfileProjection struct {
	Version        [16]byte
	Name           string
	Age            int
	Lat, Lon       float64
	LastSeenAt     time.Time
	CreatedAt      time.Time
	EditedAt       time.Time
	// SearchGroupFlags doubles as both "groups this account belongs to"
	// and "groups this account is willing to see", per spec.md §4.F's
	// gender/search-group bitflag predicate.
	SearchGroupFlags  uint32
	ProfileTextLength int32
	AttributeValues   []schema.ProfileAttributeValue
	// ProfileSyncVer is the handshake's "profile" kind: bumped whenever
	// the account's own profile fields change.
	ProfileSyncVer uint32
	Moderation     ModerationSnapshot
}

// ChatProjection is the optional per-account chat/limits state.
type ChatProjection struct {
	LikesLeft            int16
	LikesSyncVersion     uint32
	ReceivedLikesSyncVer uint32
	// ChatDataSyncVer covers the conversation/message-thread list itself,
	// distinct from the received-likes counter above.
	ChatDataSyncVer uint32
}

// SyncVersions holds the 8 handshake counters of spec.md §4.I step (3).
// The client submits one value per kind at connect time; the server
// replies with the current value and a refetch payload for any kind
// that mismatches. AccountData/ProfileAttributes/NewsCount/MediaContent
// have no other natural home on Entry, so they live here; the remaining
// four (profile, chat-data, daily-likes-left, push-notification-info)
// are tracked on ProfileProjection/ChatProjection/Entry, and pkg/wsapi's
// reconcileSync gathers all eight for the comparison.
type SyncVersions struct {
	AccountData       uint32
	ProfileAttributes uint32
	NewsCount         uint32
	MediaContent      uint32
}

// Entry is one account's cached state. All access must go through
// AccountCache.ReadByID / WriteByID — callers never hold a pointer to an
// Entry outside the closure those methods run under lock.
type Entry struct {
	AccountID int64

	State       AccountState
	Visibility  Visibility
	Permissions uint64
	IsBot       bool
	ClientFeatures uint64

	Profile *ProfileProjection
	Chat    *ChatProjection
	Sync    SyncVersions

	DeliveryMode  EventDeliveryMode
	PendingFlags  uint32
	SentFlags     uint32
	InfoSyncVer   uint32
}

// Existence follows spec.md §3: "a cache entry exists for an account
// iff the account is either logged-in or currently publicly visible on
// the index." Per SPEC_FULL.md's Open Question decision, public-but-
// logged-out entries are kept resident rather than proactively evicted;
// eviction only happens explicitly via Evict, called on logout-drain or
// on visibility leaving Public.

// AccountCache is the process-wide singleton of spec.md §4.C.
type AccountCache struct {
	mu      sync.RWMutex
	entries map[int64]*entryLock
}

type entryLock struct {
	mu    sync.RWMutex
	entry *Entry
}

// New creates an empty AccountCache.
func New() *AccountCache {
	return &AccountCache{entries: make(map[int64]*entryLock)}
}

func (c *AccountCache) lockFor(id int64, createIfMissing bool, seed func() *Entry) *entryLock {
	c.mu.RLock()
	l, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return l
	}
	if !createIfMissing {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok = c.entries[id]; ok {
		return l
	}
	l = &entryLock{entry: seed()}
	c.entries[id] = l
	return l
}

// ReadByID runs fn with a read lock held on the account's entry. It
// returns false if no entry exists for id.
func (c *AccountCache) ReadByID(id int64, fn func(*Entry)) bool {
	l := c.lockFor(id, false, nil)
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.entry)
	return true
}

// WriteByID runs fn with a write lock held on the account's entry,
// creating it from seed() first if it does not yet exist. Callers must
// not publish events while still holding this lock — release it, then
// publish, per spec.md §5's ordering rule.
func (c *AccountCache) WriteByID(id int64, seed func() *Entry, fn func(*Entry)) {
	l := c.lockFor(id, true, seed)
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.entry)
}

// ReadAll runs fn once per currently-cached entry, each under its own
// read lock. Used by the push pipeline's reconciliation scan
// (spec.md §4.J) and by admin tooling; it does not hold any lock across
// entries, so entries may be added or removed concurrently without
// blocking the scan.
func (c *AccountCache) ReadAll(fn func(id int64, e *Entry)) {
	c.mu.RLock()
	ids := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	for _, id := range ids {
		c.ReadByID(id, func(e *Entry) { fn(id, e) })
	}
}

// Evict removes an account's entry entirely. Called on logout (after the
// session's event queue drains or is discarded) or when visibility
// leaves Public, per spec.md §3.
func (c *AccountCache) Evict(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Exists reports whether id currently has a cache entry.
func (c *AccountCache) Exists(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}
