package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/pkg/accountcache"
	testutil "github.com/afrodite/datingcore/test/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(t *testing.T, client *ent.Client, state account.State, requestedAt *time.Time) int {
	t.Helper()
	create := client.Account.Create().
		SetUuid(uuid.New()).
		SetEmail(uuid.NewString() + "@example.test").
		SetBirthdate(time.Now().AddDate(-25, 0, 0)).
		SetState(state)
	if requestedAt != nil {
		create = create.SetDeletionRequestedAt(*requestedAt)
	}
	row, err := create.Save(context.Background())
	require.NoError(t, err)
	return row.ID
}

func TestPurgePendingDeletionsRemovesExpiredAccounts(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	cache := accountcache.New()
	svc := NewService(client, cache, time.Hour, time.Minute)

	past := time.Now().Add(-2 * time.Hour)
	expiredID := newTestAccount(t, client, account.StatePendingDeletion, &past)

	recent := time.Now().Add(-time.Minute)
	freshID := newTestAccount(t, client, account.StatePendingDeletion, &recent)

	svc.purgePendingDeletions(context.Background())

	_, err := client.Account.Get(context.Background(), expiredID)
	assert.True(t, err != nil, "expired pending-deletion account should have been purged")

	_, err = client.Account.Get(context.Background(), freshID)
	assert.NoError(t, err, "account still inside its grace window should survive")
}
