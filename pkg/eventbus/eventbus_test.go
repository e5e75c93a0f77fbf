package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	promotions []Kind
}

func (f *fakeSink) Promote(accountID int64, kind Kind) {
	f.promotions = append(f.promotions, kind)
}

func TestPromotedKinds(t *testing.T) {
	assert.True(t, Promoted(KindNewMessageReceived))
	assert.True(t, Promoted(KindReceivedLikesChanged))
	assert.True(t, Promoted(KindMediaContentModerationComplete))
	assert.True(t, Promoted(KindProfileStringModerationComplete))
	assert.True(t, Promoted(KindAutomaticProfileSearchComplete))
	assert.True(t, Promoted(KindAdminNotification))

	assert.False(t, Promoted(KindAccountStateChanged))
	assert.False(t, Promoted(KindProfileChanged))
	assert.False(t, Promoted(KindDailyLikesLeftChanged))
}

func TestPublishSubscribeDeliversInOrder(t *testing.T) {
	b := New(nil)
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	b.Publish(1, KindProfileChanged, "a")
	b.Publish(1, KindNewsCountChanged, "b")

	first := <-ch
	second := <-ch
	assert.Equal(t, KindProfileChanged, first.Kind)
	assert.Equal(t, KindNewsCountChanged, second.Kind)
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	b := New(nil)
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < QueueDepth+5; i++ {
		b.Publish(1, KindProfileChanged, i)
	}
	assert.Len(t, ch, QueueDepth)
}

func TestPublishNotifiesSinkEvenWhenDropped(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink)
	_, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < QueueDepth+3; i++ {
		b.Publish(1, KindNewMessageReceived, i)
	}
	assert.Len(t, sink.promotions, QueueDepth+3)
}

func TestUnsubscribeRemovesQueue(t *testing.T) {
	b := New(nil)
	_, unsubscribe := b.Subscribe(42)
	require.Len(t, b.queues, 1)
	unsubscribe()
	assert.Len(t, b.queues, 0)
}
