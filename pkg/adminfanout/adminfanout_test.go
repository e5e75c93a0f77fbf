package adminfanout

import (
	"sync"
	"testing"
	"time"

	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mu        sync.Mutex
	published []eventbus.Kind
}

func (f *fakeBus) Publish(accountID int64, kind eventbus.Kind, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, kind)
}

func (f *fakeBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestTriggerDebouncesMultipleCallsIntoOneNotification(t *testing.T) {
	bus := &fakeBus{}
	f := New(bus, nil)
	f.Subscribe(1)

	f.Trigger(CategoryInitialMediaBot)
	f.Trigger(CategoryProfileTextHuman)
	f.Trigger(CategoryProcessReports)

	require.Eventually(t, func() bool { return bus.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribeStopsFurtherNotifications(t *testing.T) {
	bus := &fakeBus{}
	f := New(bus, nil)
	f.Subscribe(1)
	f.Unsubscribe(1)

	f.Trigger(CategoryInitialMediaBot)
	time.Sleep(1200 * time.Millisecond)

	assert.Equal(t, 0, bus.count())
}

func TestCategoryNamesMapsEachBit(t *testing.T) {
	names := categoryNames(CategoryInitialMediaBot | CategoryProcessReports)
	assert.Len(t, names, 2)
	assert.Contains(t, names, "initial media (bot)")
	assert.Contains(t, names, "process reports")
}
