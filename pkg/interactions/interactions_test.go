package interactions

import (
	"context"
	"testing"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/writeexec"
	testutil "github.com/afrodite/datingcore/test/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(t *testing.T, client *ent.Client) int64 {
	t.Helper()
	row, err := client.Account.Create().
		SetUuid(uuid.New()).
		SetEmail(uuid.NewString() + "@example.test").
		SetBirthdate(time.Now().AddDate(-25, 0, 0)).
		Save(context.Background())
	require.NoError(t, err)
	return int64(row.ID)
}

func newEngine(db *ent.Client, hooks CommitHooks) (*Engine, *writeexec.Executor) {
	exec := writeexec.New()
	limits := Limits{DailyLikeQuota: 2, ResetHourUTC: 2, ResetMinuteUTC: 0}
	return New(db, exec, limits, hooks), exec
}

func TestLikeThenReciprocalLikeBecomesMatch(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	a := newTestAccount(t, client)
	b := newTestAccount(t, client)

	var matched [2]int64
	var likeReceived int64
	engine, exec := newEngine(client, CommitHooks{
		OnMatch:        func(x, y int64) { matched = [2]int64{x, y} },
		OnLikeReceived: func(receiver int64) { likeReceived = receiver },
	})
	defer exec.Shutdown()

	require.NoError(t, engine.Like(context.Background(), a, b))
	assert.Equal(t, b, likeReceived)
	assert.Equal(t, [2]int64{0, 0}, matched)

	require.NoError(t, engine.Like(context.Background(), b, a))
	assert.ElementsMatch(t, []int64{a, b}, []int64{matched[0], matched[1]})

	blocked, err := engine.IsBlocked(context.Background(), a, b)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLikeIsRejectedAfterBlock(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	a := newTestAccount(t, client)
	b := newTestAccount(t, client)

	engine, exec := newEngine(client, CommitHooks{})
	defer exec.Shutdown()

	require.NoError(t, engine.Block(context.Background(), a, b))
	blocked, err := engine.IsBlocked(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, blocked)
	// Direction shouldn't matter: the pair is blocked either way round.
	blocked, err = engine.IsBlocked(context.Background(), b, a)
	require.NoError(t, err)
	assert.True(t, blocked)

	err = engine.Like(context.Background(), b, a)
	assert.ErrorIs(t, err, apperrors.ErrNotAllowed)
}

func TestDailyLikeQuotaExhaustionBlocksFurtherLikes(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	sender := newTestAccount(t, client)

	var quotaAfter []int16
	engine, exec := newEngine(client, CommitHooks{
		OnQuotaChanged: func(account int64, likesLeft int16, syncVersion uint32) {
			quotaAfter = append(quotaAfter, likesLeft)
		},
	})
	defer exec.Shutdown()

	recv1 := newTestAccount(t, client)
	recv2 := newTestAccount(t, client)
	recv3 := newTestAccount(t, client)

	require.NoError(t, engine.Like(context.Background(), sender, recv1))
	require.NoError(t, engine.Like(context.Background(), sender, recv2))
	require.Equal(t, []int16{1, 0}, quotaAfter)

	err := engine.Like(context.Background(), sender, recv3)
	assert.ErrorIs(t, err, apperrors.ErrNotAllowed)
}

func TestSendMessageRequiresMatch(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	a := newTestAccount(t, client)
	b := newTestAccount(t, client)

	engine, exec := newEngine(client, CommitHooks{})
	defer exec.Shutdown()

	_, err := engine.SendMessage(context.Background(), a, b, []byte("hi"))
	assert.ErrorIs(t, err, apperrors.ErrNotAllowed)

	require.NoError(t, engine.Like(context.Background(), a, b))
	require.NoError(t, engine.Like(context.Background(), b, a))

	n, err := engine.SendMessage(context.Background(), a, b, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)

	n, err = engine.SendMessage(context.Background(), b, a, []byte("hi back"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), n)
}

func TestNextResetTimeRollsOverToNextDayWhenPast(t *testing.T) {
	limits := Limits{ResetHourUTC: 2, ResetMinuteUTC: 0}
	after := time.Date(2026, 7, 30, 5, 0, 0, 0, time.UTC)
	next := nextResetTime(after, limits)
	assert.Equal(t, time.Date(2026, 7, 31, 2, 0, 0, 0, time.UTC), next)
}

func TestNextResetTimeSameDayWhenStillAhead(t *testing.T) {
	limits := Limits{ResetHourUTC: 2, ResetMinuteUTC: 0}
	after := time.Date(2026, 7, 30, 0, 30, 0, 0, time.UTC)
	next := nextResetTime(after, limits)
	assert.Equal(t, time.Date(2026, 7, 30, 2, 0, 0, 0, time.UTC), next)
}

func TestOrderedPair(t *testing.T) {
	first, second := orderedPair(5, 2)
	assert.Equal(t, int64(2), first)
	assert.Equal(t, int64(5), second)

	first, second = orderedPair(2, 5)
	assert.Equal(t, int64(2), first)
	assert.Equal(t, int64(5), second)
}
