package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/ent/profile"
	entschema "github.com/afrodite/datingcore/ent/schema"
	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/moderation"
	"github.com/afrodite/datingcore/pkg/writeexec"
	"github.com/google/uuid"
)

type profileResponse struct {
	Name            string                             `json:"name"`
	Age             int                                `json:"age"`
	ProfileText     string                             `json:"profile_text"`
	LocationLat     float64                            `json:"location_lat"`
	LocationLon     float64                            `json:"location_lon"`
	AttributeValues []entschema.ProfileAttributeValue `json:"attribute_values"`
}

func (s *Server) getProfileHandler(c *echo.Context) error {
	id := accountID(c)
	row, err := s.db.Profile.Query().
		Where(profile.HasAccountWith(account.ID(int(id)))).
		Only(c.Request().Context())
	if err != nil {
		if ent.IsNotFound(err) {
			return mapErr(apperrors.ErrNotFound)
		}
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	return c.JSON(http.StatusOK, profileResponse{
		Name:            row.Name,
		Age:             row.Age,
		ProfileText:     row.ProfileText,
		LocationLat:     row.LocationLat,
		LocationLon:     row.LocationLon,
		AttributeValues: row.AttributeValues,
	})
}

type updateProfileRequest struct {
	Name            *string                            `json:"name,omitempty"`
	ProfileText     *string                            `json:"profile_text,omitempty"`
	LocationLat     *float64                           `json:"location_lat,omitempty"`
	LocationLon     *float64                           `json:"location_lon,omitempty"`
	AttributeValues []entschema.ProfileAttributeValue `json:"attribute_values,omitempty"`
}

type profileUpdateOutcome struct {
	nameChanged, textChanged bool
	name, text               string
	version                  uuid.UUID
}

// updateProfileHandler applies an edit to the account's own profile
// (spec.md §4.D): fields present in the request are written, the
// profile version is rotated, and a changed name or profile_text is
// resubmitted for moderation (spec.md §4.H). The resubmission resets
// the moderation item only; the account's visibility is left unchanged.
func (s *Server) updateProfileHandler(c *echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	id := accountID(c)
	ctx := c.Request().Context()

	outcome, err := writeexec.SubmitForAccount(s.exec, ctx, id, func(ctx context.Context) (writeexec.Result[profileUpdateOutcome], error) {
		tx, err := s.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[profileUpdateOutcome]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		row, err := tx.Profile.Query().
			Where(profile.HasAccountWith(account.ID(int(id)))).
			Only(ctx)
		if err != nil {
			_ = tx.Rollback()
			if ent.IsNotFound(err) {
				return writeexec.Result[profileUpdateOutcome]{}, apperrors.ErrNotFound
			}
			return writeexec.Result[profileUpdateOutcome]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		upd := tx.Profile.UpdateOne(row).SetVersion(uuid.New())
		out := profileUpdateOutcome{name: row.Name, text: row.ProfileText}

		if req.Name != nil && *req.Name != row.Name {
			upd = upd.SetName(*req.Name)
			out.nameChanged = true
			out.name = *req.Name
		}
		if req.ProfileText != nil && *req.ProfileText != row.ProfileText {
			upd = upd.SetProfileText(*req.ProfileText)
			out.textChanged = true
			out.text = *req.ProfileText
		}
		if req.LocationLat != nil {
			upd = upd.SetLocationLat(*req.LocationLat)
		}
		if req.LocationLon != nil {
			upd = upd.SetLocationLon(*req.LocationLon)
		}
		if req.AttributeValues != nil {
			upd = upd.SetAttributeValues(req.AttributeValues)
		}

		updated, err := upd.Save(ctx)
		if err != nil {
			_ = tx.Rollback()
			return writeexec.Result[profileUpdateOutcome]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		out.version = updated.Version

		if err := tx.Commit(); err != nil {
			return writeexec.Result[profileUpdateOutcome]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}

		return writeexec.Result[profileUpdateOutcome]{
			Value: out,
			CacheMutation: func() {
				s.cache.WriteByID(id, nil, func(e *accountcache.Entry) {
					if e.Profile != nil {
						e.Profile.Version = [16]byte(out.version)
						e.Profile.Name = out.name
						e.Profile.ProfileTextLength = int32(len(out.text))
						e.Profile.ProfileSyncVer++
					}
				})
			},
		}, nil
	})
	if err != nil {
		return err
	}

	if outcome.nameChanged {
		if err := s.moderation.SubmitString(ctx, id, moderation.ContentTypeName, outcome.name); err != nil {
			return err
		}
	}
	if outcome.textChanged {
		if err := s.moderation.SubmitString(ctx, id, moderation.ContentTypeText, outcome.text); err != nil {
			return err
		}
	}
	return c.NoContent(http.StatusNoContent)
}

type filtersResponse struct {
	entschema.FilterSettings
}

func (s *Server) getFiltersHandler(c *echo.Context) error {
	id := accountID(c)
	row, err := s.db.Profile.Query().
		Where(profile.HasAccountWith(account.ID(int(id)))).
		Only(c.Request().Context())
	if err != nil {
		if ent.IsNotFound(err) {
			return mapErr(apperrors.ErrNotFound)
		}
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	return c.JSON(http.StatusOK, filtersResponse{row.FilterSettings})
}

// updateFiltersHandler replaces the account's search filter
// configuration (spec.md §4.F). The profile iterator snapshots filters
// at reset(), so a filter change takes effect on its next reset(), not
// mid-session.
func (s *Server) updateFiltersHandler(c *echo.Context) error {
	var req entschema.FilterSettings
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	id := accountID(c)

	_, err := writeexec.SubmitForAccount(s.exec, c.Request().Context(), id, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		tx, err := s.db.Tx(ctx)
		if err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		row, err := tx.Profile.Query().
			Where(profile.HasAccountWith(account.ID(int(id)))).
			Only(ctx)
		if err != nil {
			_ = tx.Rollback()
			if ent.IsNotFound(err) {
				return writeexec.Result[struct{}]{}, apperrors.ErrNotFound
			}
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		if _, err := tx.Profile.UpdateOne(row).SetFilterSettings(req).Save(ctx); err != nil {
			_ = tx.Rollback()
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		if err := tx.Commit(); err != nil {
			return writeexec.Result[struct{}]{}, apperrors.Wrap(apperrors.ErrDataError, err)
		}
		return writeexec.Result[struct{}]{}, nil
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type iteratorResetResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) iteratorResetHandler(c *echo.Context) error {
	id := accountID(c)
	sessionID, err := s.iter.Reset(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, iteratorResetResponse{SessionID: sessionID.String()})
}

type iteratorNextResponse struct {
	Profiles []iteratorProfileRef `json:"profiles"`
}

type iteratorProfileRef struct {
	AccountID int64 `json:"account_id"`
}

func (s *Server) iteratorNextHandler(c *echo.Context) error {
	sessionParam := c.QueryParam("session_id")
	sessionID, err := parseUUID(sessionParam)
	if err != nil {
		return mapErr(&apperrors.ValidationError{Field: "session_id", Message: "must be a uuid"})
	}
	id := accountID(c)
	page, err := s.iter.NextPage(c.Request().Context(), id, sessionID)
	if err != nil {
		return err
	}
	resp := iteratorNextResponse{Profiles: make([]iteratorProfileRef, 0, len(page.Profiles))}
	for _, p := range page.Profiles {
		resp.Profiles = append(resp.Profiles, iteratorProfileRef{AccountID: p.AccountID})
	}
	return c.JSON(http.StatusOK, resp)
}
