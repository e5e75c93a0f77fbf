package wsapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffSyncVersionsNoMismatch(t *testing.T) {
	v := SyncVersions{AccountData: 1, ChatData: 2, Profile: 3}
	assert.Empty(t, diffSyncVersions(v, v))
}

func TestDiffSyncVersionsReportsEachMismatchedKind(t *testing.T) {
	client := SyncVersions{AccountData: 1, Profile: 5, DailyLikesLeft: 9}
	current := SyncVersions{AccountData: 1, Profile: 6, DailyLikesLeft: 10}

	mismatches := diffSyncVersions(client, current)
	assert.Len(t, mismatches, 2)

	byKind := map[string]uint32{}
	for _, m := range mismatches {
		byKind[m.Kind] = m.ServerVersion
	}
	assert.Equal(t, uint32(6), byKind["profile"])
	assert.Equal(t, uint32(10), byKind["daily_likes_left"])
}
