package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/pkg/writeexec"
	testutil "github.com/afrodite/datingcore/test/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingAccount(t *testing.T, client *ent.Client) *ent.Account {
	t.Helper()
	acc, err := client.Account.Create().
		SetUuid(uuid.New()).
		SetEmail(uuid.NewString() + "@example.test").
		SetBirthdate(time.Now().AddDate(-25, 0, 0)).
		SetVisibility("pending_public").
		Save(context.Background())
	require.NoError(t, err)
	_, err = client.Profile.Create().
		SetAccountID(acc.ID).
		SetName("Ada").
		SetAge(25).
		Save(context.Background())
	require.NoError(t, err)
	return acc
}

func newEngine(t *testing.T, client *ent.Client, hooks CommitHooks) (*Engine, *writeexec.Executor) {
	t.Helper()
	exec := writeexec.New()
	e, err := New(context.Background(), client, exec, hooks)
	require.NoError(t, err)
	return e, exec
}

func TestSubmitStringThenAcceptResolvesVisibilityOnceContentAccepted(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	acc := newPendingAccount(t, client)

	var resolved bool
	var resolvedVisibility string
	engine, exec := newEngine(t, client, CommitHooks{
		OnVisibilityResolved: func(accountID int64, newVisibility string, newProfileVersion [16]byte) {
			resolved = true
			resolvedVisibility = newVisibility
		},
	})
	defer exec.Shutdown()

	require.NoError(t, engine.SubmitString(context.Background(), int64(acc.ID), ContentTypeName, "Ada"))

	mod := Moderator{AccountID: 999, IsBot: false}
	require.NoError(t, engine.ModerateString(context.Background(), int64(acc.ID), ContentTypeName, mod, true, 0, ""))
	// Visibility shouldn't resolve yet: no initial content accepted.
	assert.False(t, resolved)

	_, err := client.MediaContent.Create().
		SetAccountID(acc.ID).
		SetStorageKey([]byte("k")).
		SetContentTypeNumber(1).
		SetIsInitialContent(true).
		SetModerationState("accepted_by_human").
		Save(context.Background())
	require.NoError(t, err)

	// Re-running ModerateString (e.g. a re-decision) re-checks the gate and
	// should now resolve visibility since name+content are both accepted.
	require.NoError(t, engine.ModerateString(context.Background(), int64(acc.ID), ContentTypeName, mod, true, 0, ""))
	assert.True(t, resolved)
	assert.Equal(t, "public", resolvedVisibility)
}

func TestSubmitStringAllowlistedNameSkipsModeration(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	acc := newPendingAccount(t, client)

	engine, exec := newEngine(t, client, CommitHooks{})
	defer exec.Shutdown()

	require.NoError(t, engine.AddToAllowlist(context.Background(), "Ada", int64(acc.ID), 999))
	require.NoError(t, engine.SubmitString(context.Background(), int64(acc.ID), ContentTypeName, "Ada"))

	items, err := engine.ListStringQueue(context.Background(), ContentTypeName, Moderator{IsBot: true}, false)
	require.NoError(t, err)
	assert.Empty(t, items, "allowlisted name should not land in the bot queue")
}

func TestModerateStringRejectRecordsReason(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	acc := newPendingAccount(t, client)

	engine, exec := newEngine(t, client, CommitHooks{})
	defer exec.Shutdown()

	require.NoError(t, engine.SubmitString(context.Background(), int64(acc.ID), ContentTypeText, "hello"))
	mod := Moderator{AccountID: 1, IsBot: true}
	require.NoError(t, engine.ModerateString(context.Background(), int64(acc.ID), ContentTypeText, mod, false, 7, "spam"))

	items, err := engine.ListStringQueue(context.Background(), ContentTypeText, Moderator{IsBot: true}, false)
	require.NoError(t, err)
	assert.Empty(t, items, "rejected item should no longer be waiting")
}

func TestListStringQueueBotSeesOnlyBotModeratable(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	accBot := newPendingAccount(t, client)
	accHuman := newPendingAccount(t, client)

	engine, exec := newEngine(t, client, CommitHooks{})
	defer exec.Shutdown()

	require.NoError(t, engine.SubmitString(context.Background(), int64(accBot.ID), ContentTypeName, "Bot Visible"))
	require.NoError(t, engine.SubmitString(context.Background(), int64(accHuman.ID), ContentTypeName, "Human Only"))
	require.NoError(t, engine.MoveStringToHumanModeration(context.Background(), int64(accHuman.ID), ContentTypeName))

	botItems, err := engine.ListStringQueue(context.Background(), ContentTypeName, Moderator{IsBot: true}, false)
	require.NoError(t, err)
	assert.Len(t, botItems, 1)
	assert.Equal(t, int64(accBot.ID), botItems[0].AccountID)

	humanItems, err := engine.ListStringQueue(context.Background(), ContentTypeName, Moderator{IsBot: false}, true)
	require.NoError(t, err)
	ids := []int64{humanItems[0].AccountID}
	if len(humanItems) > 1 {
		ids = append(ids, humanItems[1].AccountID)
	}
	assert.Contains(t, ids, int64(accHuman.ID))
}

func TestModerateMediaRecordsDecidingModeratorNotContentOwner(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	acc := newPendingAccount(t, client)

	engine, exec := newEngine(t, client, CommitHooks{})
	defer exec.Shutdown()

	media, err := client.MediaContent.Create().
		SetAccountID(acc.ID).
		SetStorageKey([]byte("k")).
		SetContentTypeNumber(1).
		SetIsInitialContent(true).
		Save(context.Background())
	require.NoError(t, err)

	mod := Moderator{AccountID: 42, IsBot: false}
	require.NoError(t, engine.ModerateMedia(context.Background(), media.ID, mod, true, 0, ""))

	reloaded, err := client.MediaContent.Get(context.Background(), media.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ModeratorAccountID)
	assert.Equal(t, mod.AccountID, *reloaded.ModeratorAccountID, "moderator_account_id must be the deciding moderator, not the content owner")
}

func TestListMediaQueueOrdersByCreatedAtThenAccountID(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	acc := newPendingAccount(t, client)

	engine, exec := newEngine(t, client, CommitHooks{})
	defer exec.Shutdown()

	_, err := client.MediaContent.Create().
		SetAccountID(acc.ID).
		SetStorageKey([]byte("k1")).
		SetContentTypeNumber(1).
		Save(context.Background())
	require.NoError(t, err)
	_, err = client.MediaContent.Create().
		SetAccountID(acc.ID).
		SetStorageKey([]byte("k2")).
		SetContentTypeNumber(1).
		Save(context.Background())
	require.NoError(t, err)

	items, err := engine.ListMediaQueue(context.Background(), Moderator{IsBot: true}, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].CreatedAt.Before(items[1].CreatedAt) || items[0].CreatedAt.Equal(items[1].CreatedAt))
}

func TestModerateMediaRejectRemovesFromQueue(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	acc := newPendingAccount(t, client)

	engine, exec := newEngine(t, client, CommitHooks{})
	defer exec.Shutdown()

	media, err := client.MediaContent.Create().
		SetAccountID(acc.ID).
		SetStorageKey([]byte("k")).
		SetContentTypeNumber(1).
		Save(context.Background())
	require.NoError(t, err)

	mod := Moderator{AccountID: 1, IsBot: true}
	require.NoError(t, engine.ModerateMedia(context.Background(), media.ID, mod, false, 3, "inappropriate"))

	items, err := engine.ListMediaQueue(context.Background(), Moderator{IsBot: true}, false)
	require.NoError(t, err)
	assert.Empty(t, items, "rejected media item should no longer be waiting")
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ada lovelace", normalizeName("  Ada Lovelace  "))
}
