package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/pkg/adminfanout"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/moderation"
)

type queueItemResponse struct {
	AccountID int64     `json:"account_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) moderatorFromRequest(c *echo.Context) moderation.Moderator {
	isBot := c.QueryParam("as_bot") == "true"
	return moderation.Moderator{AccountID: accountID(c), IsBot: isBot}
}

// listNameQueueHandler lists the profile-name moderation queue
// (spec.md §4.H).
func (s *Server) listNameQueueHandler(c *echo.Context) error {
	return s.listQueue(c, moderation.ContentTypeName)
}

// listTextQueueHandler lists the profile-text moderation queue
// (spec.md §4.H).
func (s *Server) listTextQueueHandler(c *echo.Context) error {
	return s.listQueue(c, moderation.ContentTypeText)
}

func (s *Server) listQueue(c *echo.Context, contentType moderation.ContentType) error {
	mod := s.moderatorFromRequest(c)
	showBotModeratable := c.QueryParam("show_bot_moderatable") == "true"
	items, err := s.moderation.ListStringQueue(c.Request().Context(), contentType, mod, showBotModeratable)
	if err != nil {
		return err
	}
	resp := make([]queueItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, queueItemResponse{
			AccountID: it.AccountID,
			State:     string(it.State),
			CreatedAt: it.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

type moderateDecisionRequest struct {
	Accept         bool   `json:"accept"`
	RejectCategory int16  `json:"reject_category,omitempty"`
	RejectDetails  string `json:"reject_details,omitempty"`
}

// moderateNameHandler applies an accept/reject decision to a
// profile-name queue item.
func (s *Server) moderateNameHandler(c *echo.Context) error {
	return s.moderateString(c, moderation.ContentTypeName)
}

// moderateTextHandler applies an accept/reject decision to a
// profile-text queue item.
func (s *Server) moderateTextHandler(c *echo.Context) error {
	return s.moderateString(c, moderation.ContentTypeText)
}

func (s *Server) moderateString(c *echo.Context, contentType moderation.ContentType) error {
	target, err := parseAccountIDParam(c)
	if err != nil {
		return mapErr(err)
	}
	var req moderateDecisionRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	mod := s.moderatorFromRequest(c)
	if err := s.moderation.ModerateString(c.Request().Context(), target, contentType, mod, req.Accept, req.RejectCategory, req.RejectDetails); err != nil {
		return err
	}

	// A moderation decision is itself a workload event for other
	// moderators' dashboards (spec.md §4.H's admin-notification fanout).
	if s.admin != nil {
		s.admin.Trigger(adminfanout.CategoryProcessReports)
	}
	return c.NoContent(http.StatusNoContent)
}

type mediaQueueItemResponse struct {
	MediaID   int       `json:"media_id"`
	AccountID int64     `json:"account_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// listMediaQueueHandler lists the profile-content (media) moderation
// queue, the third of spec.md §4.H's three parallel queues.
func (s *Server) listMediaQueueHandler(c *echo.Context) error {
	mod := s.moderatorFromRequest(c)
	showBotModeratable := c.QueryParam("show_bot_moderatable") == "true"
	items, err := s.moderation.ListMediaQueue(c.Request().Context(), mod, showBotModeratable)
	if err != nil {
		return err
	}
	resp := make([]mediaQueueItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, mediaQueueItemResponse{
			MediaID:   it.MediaID,
			AccountID: it.AccountID,
			State:     it.State,
			CreatedAt: it.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// moderateMediaHandler applies an accept/reject decision to a
// profile-content queue item, identified by media id rather than
// account id since an account may have more than one pending item.
func (s *Server) moderateMediaHandler(c *echo.Context) error {
	mediaID, err := strconv.Atoi(c.PathParam("media_id"))
	if err != nil {
		return mapErr(&apperrors.ValidationError{Field: "media_id", Message: "must be an integer"})
	}
	var req moderateDecisionRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	mod := s.moderatorFromRequest(c)
	if err := s.moderation.ModerateMedia(c.Request().Context(), mediaID, mod, req.Accept, req.RejectCategory, req.RejectDetails); err != nil {
		return err
	}

	if s.admin != nil {
		s.admin.Trigger(adminfanout.CategoryProcessReports)
	}
	return c.NoContent(http.StatusNoContent)
}

type adminSubscribeRequest struct {
	Subscribe bool `json:"subscribe"`
}

// adminSubscribeHandler toggles the caller's subscription to the
// debounced admin-notification fanout of spec.md §4.H.
func (s *Server) adminSubscribeHandler(c *echo.Context) error {
	if s.admin == nil {
		return mapErr(apperrors.ErrFeatureDisabled)
	}
	var req adminSubscribeRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	id := accountID(c)
	if req.Subscribe {
		s.admin.Subscribe(id)
	} else {
		s.admin.Unsubscribe(id)
	}
	return c.NoContent(http.StatusNoContent)
}
