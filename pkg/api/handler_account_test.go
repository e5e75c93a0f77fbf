package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrodite/datingcore/ent"
	entaccount "github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/writeexec"
	testutil "github.com/afrodite/datingcore/test/util"
)

func newTestAccountRow(t *testing.T, client *ent.Client) *ent.Account {
	t.Helper()
	row, err := client.Account.Create().
		SetUuid(uuid.New()).
		SetEmail(uuid.NewString() + "@example.test").
		SetBirthdate(time.Now().AddDate(-25, 0, 0)).
		Save(context.Background())
	require.NoError(t, err)
	return row
}

func newRequestDeletionServer(client *ent.Client, exec *writeexec.Executor, cache *accountcache.AccountCache) *Server {
	s := &Server{
		echo:  echo.New(),
		db:    client,
		exec:  exec,
		cache: cache,
	}
	return s
}

// TestRequestDeletionHandlerPersistsStateToDatabase guards against the
// reviewed bug where the handler only flipped the cache's copy of the
// account state and never touched the database, leaving the
// pkg/cleanup reaper (which queries the DB directly) unable to ever
// find the row.
func TestRequestDeletionHandlerPersistsStateToDatabase(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	row := newTestAccountRow(t, client)

	exec := writeexec.New()
	defer exec.Shutdown()
	cache := accountcache.New()
	cache.WriteByID(int64(row.ID), func() *accountcache.Entry {
		return &accountcache.Entry{AccountID: int64(row.ID), State: accountcache.StateNormal}
	}, func(*accountcache.Entry) {})

	s := newRequestDeletionServer(client, exec, cache)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/deletion-request", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.Set(accountIDContextKey, int64(row.ID))

	require.NoError(t, s.requestDeletionHandler(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	reloaded, err := client.Account.Get(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, entaccount.StatePendingDeletion, reloaded.State)
	require.NotNil(t, reloaded.DeletionRequestedAt)
	assert.WithinDuration(t, time.Now(), *reloaded.DeletionRequestedAt, 5*time.Second)

	found := cache.ReadByID(int64(row.ID), func(e *accountcache.Entry) {
		assert.Equal(t, accountcache.StatePendingDeletion, e.State)
	})
	assert.True(t, found)
}

func TestRequestDeletionHandlerNotFoundForUnknownAccount(t *testing.T) {
	client, _ := testutil.SetupTestDatabase(t)
	exec := writeexec.New()
	defer exec.Shutdown()
	cache := accountcache.New()
	s := newRequestDeletionServer(client, exec, cache)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/deletion-request", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.Set(accountIDContextKey, int64(999999))

	err := s.requestDeletionHandler(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteAccountHandlerEvictsCache(t *testing.T) {
	cache := accountcache.New()
	cache.WriteByID(1, func() *accountcache.Entry { return &accountcache.Entry{AccountID: 1} }, func(*accountcache.Entry) {})

	s := &Server{echo: echo.New(), cache: cache}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/account", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	c.Set(accountIDContextKey, int64(1))

	require.NoError(t, s.deleteAccountHandler(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	found := cache.ReadByID(1, func(*accountcache.Entry) {})
	assert.False(t, found)
}
