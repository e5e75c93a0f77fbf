package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/pkg/apperrors"
)

func parseAccountIDParam(c *echo.Context) (int64, error) {
	raw := c.PathParam("account_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &apperrors.ValidationError{Field: "account_id", Message: "must be an integer"}
	}
	return id, nil
}

// likeHandler implements spec.md §4.G's like(sender → receiver)
// transition.
func (s *Server) likeHandler(c *echo.Context) error {
	target, err := parseAccountIDParam(c)
	if err != nil {
		return mapErr(err)
	}
	sender := accountID(c)
	if err := s.interactions.Like(c.Request().Context(), sender, target); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// blockHandler implements spec.md §4.G's block flow.
func (s *Server) blockHandler(c *echo.Context) error {
	target, err := parseAccountIDParam(c)
	if err != nil {
		return mapErr(err)
	}
	blocker := accountID(c)
	if err := s.interactions.Block(c.Request().Context(), blocker, target); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	MessageNumber int32 `json:"message_number"`
}

// sendMessageHandler implements spec.md §4.G's match-only message flow.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	target, err := parseAccountIDParam(c)
	if err != nil {
		return mapErr(err)
	}
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	if req.Text == "" {
		return mapErr(&apperrors.ValidationError{Field: "text", Message: "required"})
	}

	sender := accountID(c)
	number, err := s.interactions.SendMessage(c.Request().Context(), sender, target, []byte(req.Text))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sendMessageResponse{MessageNumber: number})
}
