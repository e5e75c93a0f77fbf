// Package identity implements spec.md §4.A: account registration and the
// access/refresh token lifecycle. Tokens are cryptographically random,
// URL-safe opaque strings bound to the connecting address as a
// defense-in-depth measure — a stolen token presented from a different
// address is rejected.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/accesstoken"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/ent/refreshtoken"
	"github.com/afrodite/datingcore/pkg/apperrors"
)

// tokenEntropyBytes yields >=128 bits of entropy once base64url-encoded,
// per spec.md §4.A.
const tokenEntropyBytes = 32

// TokenPair is the access+refresh pair minted at login and on refresh
// exchange.
type TokenPair struct {
	Access  string
	Refresh string
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Wrap(apperrors.ErrDataError, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Store mints, validates, and rotates tokens against the database.
type Store struct {
	db *ent.Client
}

// NewStore builds a token Store over an ent client.
func NewStore(db *ent.Client) *Store {
	return &Store{db: db}
}

// Register allocates a new account row in InitialSetup state and
// returns its internal id. The public uuid is assigned by the schema's
// default generator.
func (s *Store) Register(ctx context.Context, email string, isBot bool, birthdate string) (int64, error) {
	acc, err := s.db.Account.Create().
		SetEmail(email).
		SetIsBot(isBot).
		Save(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	return int64(acc.ID), nil
}

// MintTokens issues a fresh access+refresh pair for internalID, bound to
// address. Any prior tokens remain valid until a refresh exchange
// rotates them (tokens carry no expiry) — login does not revoke other
// sessions.
func (s *Store) MintTokens(ctx context.Context, internalID int64, address string) (TokenPair, error) {
	access, err := newOpaqueToken()
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return TokenPair{}, err
	}

	tx, err := s.db.Tx(ctx)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	if _, err := tx.AccessToken.Create().
		SetToken(access).
		SetBoundAddress(address).
		SetAccountID(int(internalID)).
		Save(ctx); err != nil {
		_ = tx.Rollback()
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if _, err := tx.RefreshToken.Create().
		SetToken(refresh).
		SetAccountID(int(internalID)).
		Save(ctx); err != nil {
		_ = tx.Rollback()
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	if err := tx.Commit(); err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ExchangeRefresh atomically invalidates refreshToken and issues a new
// pair bound to address, per spec.md §4.A's "refresh exchange is atomic"
// rule and the round-trip law in spec.md §8 (old refresh invalid, new
// refresh valid exactly once).
func (s *Store) ExchangeRefresh(ctx context.Context, refreshToken, address string) (TokenPair, error) {
	tx, err := s.db.Tx(ctx)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	row, err := tx.RefreshToken.Query().
		Where(refreshtoken.TokenEQ(refreshToken)).
		WithAccount().
		Only(ctx)
	if err != nil {
		_ = tx.Rollback()
		if ent.IsNotFound(err) {
			return TokenPair{}, apperrors.ErrUnauthorized
		}
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	internalID := int64(row.Edges.Account.ID)

	// Invalidate every existing token for this account in the same
	// transaction the new pair is issued in, so a crash between delete
	// and create cannot leave two valid refresh tokens.
	if _, err := tx.RefreshToken.Delete().
		Where(refreshtoken.HasAccountWith(account.ID(int(internalID)))).
		Exec(ctx); err != nil {
		_ = tx.Rollback()
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if _, err := tx.AccessToken.Delete().
		Where(accesstoken.HasAccountWith(account.ID(int(internalID)))).
		Exec(ctx); err != nil {
		_ = tx.Rollback()
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	access, err := newOpaqueToken()
	if err != nil {
		_ = tx.Rollback()
		return TokenPair{}, err
	}
	newRefresh, err := newOpaqueToken()
	if err != nil {
		_ = tx.Rollback()
		return TokenPair{}, err
	}

	if _, err := tx.AccessToken.Create().
		SetToken(access).
		SetBoundAddress(address).
		SetAccountID(int(internalID)).
		Save(ctx); err != nil {
		_ = tx.Rollback()
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if _, err := tx.RefreshToken.Create().
		SetToken(newRefresh).
		SetAccountID(int(internalID)).
		Save(ctx); err != nil {
		_ = tx.Rollback()
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	if err := tx.Commit(); err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	return TokenPair{Access: access, Refresh: newRefresh}, nil
}

// Resolve validates an access token against its bound address and
// returns the owning account's internal id.
func (s *Store) Resolve(ctx context.Context, accessToken, address string) (int64, error) {
	row, err := s.db.AccessToken.Query().
		Where(accesstoken.TokenEQ(accessToken)).
		WithAccount().
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return 0, apperrors.ErrUnauthorized
		}
		return 0, apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if row.BoundAddress != address {
		return 0, apperrors.ErrUnauthorized
	}
	return int64(row.Edges.Account.ID), nil
}

// ValidateRefreshOwnership checks that refreshToken is the account's
// currently-issued refresh token, used by the WebSocket handshake of
// spec.md §4.I step (1).
func (s *Store) ValidateRefreshOwnership(ctx context.Context, internalID int64, refreshToken string) error {
	exists, err := s.db.RefreshToken.Query().
		Where(
			refreshtoken.TokenEQ(refreshToken),
			refreshtoken.HasAccountWith(account.ID(int(internalID))),
		).
		Exist(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDataError, err)
	}
	if !exists {
		return apperrors.ErrUnauthorized
	}
	return nil
}
