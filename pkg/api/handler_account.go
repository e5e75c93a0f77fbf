package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/writeexec"
)

type registerRequest struct {
	Email     string `json:"email"`
	IsBot     bool   `json:"is_bot"`
	Birthdate string `json:"birthdate"`
}

type registerResponse struct {
	AccountID    int64  `json:"account_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// registerHandler implements spec.md §4.A account creation: creates the
// account row in InitialSetup state, then mints the first token pair
// bound to the caller's remote address.
func (s *Server) registerHandler(c *echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	if req.Email == "" {
		return mapErr(&apperrors.ValidationError{Field: "email", Message: "required"})
	}

	ctx := c.Request().Context()
	id, err := s.identity.Register(ctx, req.Email, req.IsBot, req.Birthdate)
	if err != nil {
		return err
	}
	pair, err := s.identity.MintTokens(ctx, id, c.Request().RemoteAddr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, registerResponse{
		AccountID:    id,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshHandler exchanges a refresh token for a fresh pair bound to
// the caller's current remote address, per spec.md §4.A.
func (s *Server) refreshHandler(c *echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	pair, err := s.identity.ExchangeRefresh(c.Request().Context(), req.RefreshToken, c.Request().RemoteAddr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, registerResponse{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	})
}

type accountStateResponse struct {
	AccountID   int64  `json:"account_id"`
	State       string `json:"state"`
	Visibility  string `json:"visibility"`
	Permissions uint64 `json:"permissions"`
}

// accountStateHandler reports the cache-resident account state of
// spec.md §4.C — the same projection the WS handshake reconciles
// against.
func (s *Server) accountStateHandler(c *echo.Context) error {
	id := accountID(c)
	resp := accountStateResponse{AccountID: id}
	found := s.cache.ReadByID(id, func(e *accountcache.Entry) {
		resp.State = string(e.State)
		resp.Visibility = string(e.Visibility)
		resp.Permissions = e.Permissions
	})
	if !found {
		return mapErr(apperrors.ErrNotFound)
	}
	return c.JSON(http.StatusOK, resp)
}

type updateSettingsRequest struct {
	ClientFeatures *uint64 `json:"client_features,omitempty"`
}

// updateSettingsHandler applies account-level settings (spec.md §4.A),
// currently the client feature flag bitset.
func (s *Server) updateSettingsHandler(c *echo.Context) error {
	var req updateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	id := accountID(c)
	if req.ClientFeatures != nil {
		found := s.cache.ReadByID(id, func(*accountcache.Entry) {})
		if !found {
			return mapErr(apperrors.ErrNotFound)
		}
		s.cache.WriteByID(id, nil, func(e *accountcache.Entry) {
			e.ClientFeatures = *req.ClientFeatures
		})
	}
	return c.NoContent(http.StatusNoContent)
}

// requestDeletionHandler starts the pending-deletion flow of spec.md
// §4.A: Account.state and Account.deletion_requested_at are persisted
// so the cleanup reaper (pkg/cleanup) can find and purge the row once
// its grace window elapses; the cache is only updated after the write
// commits.
func (s *Server) requestDeletionHandler(c *echo.Context) error {
	id := accountID(c)

	_, err := writeexec.SubmitForAccount(s.exec, c.Request().Context(), id, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := s.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		row, err := tx.Account.Get(ctx, int(id))
		if err != nil {
			_ = tx.Rollback()
			if ent.IsNotFound(err) {
				return writeexec.Result[struct{}]{}, apperrors.ErrNotFound
			}
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		if _, err := tx.Account.UpdateOne(row).
			SetState(account.StatePendingDeletion).
			SetDeletionRequestedAt(time.Now()).
			Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		return writeexec.Result[struct{}]{
			CacheMutation: func() {
				s.cache.WriteByID(id, nil, func(e *accountcache.Entry) {
					e.State = accountcache.StatePendingDeletion
				})
			},
		}, nil
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

// deleteAccountHandler evicts the account from the cache immediately;
// the underlying DB row is removed by the pending-deletion sweep once
// its grace window elapses (spec.md §4.A). Exposed here as an
// operator/self-serve "forget me now" shortcut over the cache view.
func (s *Server) deleteAccountHandler(c *echo.Context) error {
	id := accountID(c)
	s.cache.Evict(id)
	return c.NoContent(http.StatusNoContent)
}
