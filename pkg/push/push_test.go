package push

import (
	"testing"

	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/stretchr/testify/assert"
)

func TestFlagForKindCoversAllPromotedKinds(t *testing.T) {
	promoted := []eventbus.Kind{
		eventbus.KindNewMessageReceived,
		eventbus.KindProfileStringModerationComplete,
		eventbus.KindMediaContentModerationComplete,
		eventbus.KindReceivedLikesChanged,
		eventbus.KindAutomaticProfileSearchComplete,
		eventbus.KindAdminNotification,
	}
	seen := map[Flag]bool{}
	for _, kind := range promoted {
		bit, ok := flagForKind(kind)
		assert.True(t, ok, "kind %s should map to a flag", kind)
		assert.False(t, seen[bit], "flag collision for kind %s", kind)
		seen[bit] = true
	}
}

func TestFlagForKindRejectsNonPromotedKinds(t *testing.T) {
	_, ok := flagForKind(eventbus.KindProfileChanged)
	assert.False(t, ok)
}

func TestSaturatingIncStopsAtMax(t *testing.T) {
	assert.Equal(t, uint32(1), saturatingInc(0))
	assert.Equal(t, ^uint32(0), saturatingInc(^uint32(0)-1))
	assert.Equal(t, ^uint32(0), saturatingInc(^uint32(0)))
}
