// Package eventbus implements the per-account event queue of spec.md
// §4.I: a fixed, bounded, drop-oldest-denying queue that the write
// executor's Result.Events hook publishes into after every committed
// change, and that the WS session (pkg/wsapi) drains while connected.
//
// Publication never blocks: a full queue simply drops the event (the
// client resyncs sync versions on its next connect, so no event is the
// sole source of truth for any data kind). Promoted kinds additionally
// notify a PromotionSink regardless of whether the queue accepted the
// event, since push delivery (pkg/push) tracks its own pending-flag
// bitset independent of queue occupancy.
package eventbus

import "sync"

// Kind is one of the fixed event kinds of spec.md §4.I.
type Kind string

const (
	KindAccountStateChanged            Kind = "account_state_changed"
	KindNewMessageReceived             Kind = "new_message_received"
	KindReceivedLikesChanged           Kind = "received_likes_changed"
	KindContentProcessingStateChanged  Kind = "content_processing_state_changed"
	KindClientConfigChanged            Kind = "client_config_changed"
	KindProfileChanged                 Kind = "profile_changed"
	KindNewsCountChanged               Kind = "news_count_changed"
	KindMediaContentModerationComplete Kind = "media_content_moderation_completed"
	KindMediaContentChanged            Kind = "media_content_changed"
	KindDailyLikesLeftChanged          Kind = "daily_likes_left_changed"
	KindScheduledMaintenanceStatus     Kind = "scheduled_maintenance_status"
	KindProfileStringModerationComplete Kind = "profile_string_moderation_completed"
	KindAutomaticProfileSearchComplete Kind = "automatic_profile_search_completed"
	KindAdminNotification              Kind = "admin_notification"
)

// Promoted reports whether kind escalates to push delivery when the
// account has no connected WebSocket session (spec.md §4.J). The other
// eight kinds are in-session-only: if nobody is listening, they're
// simply lost, and the next handshake's sync-version comparison is what
// catches the account back up.
func Promoted(kind Kind) bool {
	switch kind {
	case KindNewMessageReceived,
		KindProfileStringModerationComplete,
		KindMediaContentModerationComplete,
		KindReceivedLikesChanged,
		KindAutomaticProfileSearchComplete,
		KindAdminNotification:
		return true
	default:
		return false
	}
}

// QueueDepth is the fixed per-account queue capacity of spec.md §4.I.
const QueueDepth = 10

// Event is one occurrence published to an account's queue. Payload
// carries whatever data the receiving WS session needs to forward to
// the client; its shape is kind-specific and left to callers.
type Event struct {
	Kind    Kind
	Payload any
}

// PromotionSink receives every promoted-kind event as it's published,
// independent of whether the account's queue had room for it or anyone
// is connected. pkg/push implements this to maintain pending_flags.
type PromotionSink interface {
	Promote(accountID int64, kind Kind)
}

// Bus holds one bounded queue per account with a subscribed drain.
// The zero value is not usable; construct with New.
type Bus struct {
	mu     sync.Mutex
	queues map[int64]*accountQueue
	sink   PromotionSink
}

type accountQueue struct {
	mu   sync.Mutex
	ch   chan Event
	subs int
}

// New creates a Bus. sink may be nil if push delivery isn't wired
// (e.g. in tests exercising only in-session delivery).
func New(sink PromotionSink) *Bus {
	return &Bus{queues: make(map[int64]*accountQueue), sink: sink}
}

func (b *Bus) queueFor(accountID int64) *accountQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[accountID]
	if !ok {
		q = &accountQueue{ch: make(chan Event, QueueDepth)}
		b.queues[accountID] = q
	}
	return q
}

// Publish enqueues kind/payload for accountID. It never blocks: if the
// account's queue is full, the event is dropped. Promoted kinds still
// reach the PromotionSink even when dropped.
func (b *Bus) Publish(accountID int64, kind Kind, payload any) {
	q := b.queueFor(accountID)
	select {
	case q.ch <- Event{Kind: kind, Payload: payload}:
	default:
	}
	if Promoted(kind) && b.sink != nil {
		b.sink.Promote(accountID, kind)
	}
}

// Subscribe returns the channel to drain for accountID, and an
// unsubscribe func to call when the session disconnects. Per spec.md
// §4.I's cancellation semantics, unsubscribing drops whatever remains
// queued — promoted kinds already reached the PromotionSink at publish
// time, so they aren't lost; transient kinds are.
//
// Only one subscriber is meaningful per account at a time (a second
// WebSocket login for the same account races the first for events);
// callers are responsible for disconnecting any prior session first.
func (b *Bus) Subscribe(accountID int64) (<-chan Event, func()) {
	q := b.queueFor(accountID)
	q.mu.Lock()
	q.subs++
	q.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		q, ok := b.queues[accountID]
		if !ok {
			return
		}
		q.mu.Lock()
		q.subs--
		empty := q.subs <= 0
		q.mu.Unlock()
		if empty {
			delete(b.queues, accountID)
			// Drain without replacing the channel: any goroutine still
			// holding the old receive end (there shouldn't be one once
			// unsubscribe has been called) simply stops seeing events.
		}
	}
	return q.ch, unsubscribe
}
