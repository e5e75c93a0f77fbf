// Package adminfanout implements the moderator notification fan-out of
// spec.md §4.K: a 9-category workload bitset, per-subscriber debounced
// AdminNotification events, and an optional Slack digest. It reuses the
// teacher's pkg/slack.Client for the Slack side rather than re-wiring
// slack-go from scratch.
package adminfanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/afrodite/datingcore/pkg/slack"
)

// Category bits index the 9 moderator work queues of spec.md §4.K, in
// the order the spec lists them.
type Category = uint32

const (
	CategoryInitialMediaBot Category = 1 << iota
	CategoryInitialMediaHuman
	CategoryOngoingMediaBot
	CategoryOngoingMediaHuman
	CategoryProfileTextBot
	CategoryProfileTextHuman
	CategoryProfileNameBot
	CategoryProfileNameHuman
	CategoryProcessReports
)

var categoryLabels = map[Category]string{
	CategoryInitialMediaBot:   "initial media (bot)",
	CategoryInitialMediaHuman: "initial media (human)",
	CategoryOngoingMediaBot:   "ongoing media (bot)",
	CategoryOngoingMediaHuman: "ongoing media (human)",
	CategoryProfileTextBot:    "profile text (bot)",
	CategoryProfileTextHuman:  "profile text (human)",
	CategoryProfileNameBot:    "profile name (bot)",
	CategoryProfileNameHuman:  "profile name (human)",
	CategoryProcessReports:    "process reports",
}

// debounceWindow merges triggers arriving within this window into one
// AdminNotification per subscriber, per spec.md §4.K.
const debounceWindow = 1 * time.Second

// Bus is the minimal eventbus surface adminfanout needs: publishing an
// AdminNotification for a subscribed moderator account.
type Bus interface {
	Publish(accountID int64, kind eventbus.Kind, payload any)
}

type subscriber struct {
	mu      sync.Mutex
	pending Category
	timer   *time.Timer
}

// Fanout tracks moderator subscriptions and debounces AdminNotification
// delivery. The zero value is not usable; construct with New.
type Fanout struct {
	bus   Bus
	slack *slack.Client // optional; nil disables the Slack digest

	mu   sync.Mutex
	subs map[int64]*subscriber
}

// New builds a Fanout. slackClient may be nil to disable the digest.
func New(bus Bus, slackClient *slack.Client) *Fanout {
	return &Fanout{bus: bus, slack: slackClient, subs: make(map[int64]*subscriber)}
}

// Subscribe registers accountID (a moderator) to receive debounced
// AdminNotification events. Calling Subscribe again for an
// already-subscribed account is a no-op.
func (f *Fanout) Subscribe(accountID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[accountID]; ok {
		return
	}
	f.subs[accountID] = &subscriber{}
}

// Unsubscribe removes accountID from the moderator fan-out list,
// stopping any pending debounce timer.
func (f *Fanout) Unsubscribe(accountID int64) {
	f.mu.Lock()
	sub, ok := f.subs[accountID]
	delete(f.subs, accountID)
	f.mu.Unlock()
	if !ok {
		return
	}
	sub.mu.Lock()
	if sub.timer != nil {
		sub.timer.Stop()
	}
	sub.mu.Unlock()
}

// Trigger records new pending work in category and schedules each
// subscriber's debounce window if none is running; a trigger that arrives
// while a window runs is merged into it. When the window elapses,
// every category accumulated since the subscriber's last delivery is
// flushed as one AdminNotification.
func (f *Fanout) Trigger(category Category) {
	f.mu.Lock()
	subs := make([]int64, 0, len(f.subs))
	subList := make([]*subscriber, 0, len(f.subs))
	for id, sub := range f.subs {
		subs = append(subs, id)
		subList = append(subList, sub)
	}
	f.mu.Unlock()

	for i, sub := range subList {
		accountID := subs[i]
		sub.mu.Lock()
		sub.pending |= category
		if sub.timer == nil {
			sub.timer = time.AfterFunc(debounceWindow, func() {
				f.flush(accountID, sub)
			})
		}
		sub.mu.Unlock()
	}
}

func (f *Fanout) flush(accountID int64, sub *subscriber) {
	sub.mu.Lock()
	categories := sub.pending
	sub.pending = 0
	sub.timer = nil
	sub.mu.Unlock()

	if categories == 0 {
		return
	}
	f.bus.Publish(accountID, eventbus.KindAdminNotification, map[string]any{
		"categories": categoryNames(categories),
	})

	if f.slack != nil {
		f.postDigest(categories)
	}
}

func (f *Fanout) postDigest(categories Category) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	blocks := slack.BuildDigestMessage(categoryNames(categories))
	if err := f.slack.PostMessage(ctx, blocks, "", 10*time.Second); err != nil {
		slog.Warn("adminfanout: slack digest failed", "error", err)
	}
}

func categoryNames(categories Category) []string {
	var names []string
	for bit, label := range categoryLabels {
		if categories&bit != 0 {
			names = append(names, label)
		}
	}
	return names
}
