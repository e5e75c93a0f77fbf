package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/afrodite/datingcore/pkg/apperrors"
)

// systemInfoHandler surfaces the manager peer's view of deployed system
// instances (SPEC_FULL.md's manager-RPC supplement). Returns
// FeatureDisabled when no manager address is configured.
func (s *Server) systemInfoHandler(c *echo.Context) error {
	if s.manager == nil {
		return mapErr(apperrors.ErrFeatureDisabled)
	}
	systems, err := s.manager.SystemInfo(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, systems)
}

// softwareInfoHandler surfaces the manager's currently deployed
// build/version.
func (s *Server) softwareInfoHandler(c *echo.Context) error {
	if s.manager == nil {
		return mapErr(apperrors.ErrFeatureDisabled)
	}
	info, err := s.manager.SoftwareInfo(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, info)
}

type updateSoftwareRequest struct {
	BuildID string `json:"build_id"`
	Reboot  bool   `json:"reboot"`
}

// requestUpdateSoftwareHandler asks the manager to deploy a build.
func (s *Server) requestUpdateSoftwareHandler(c *echo.Context) error {
	if s.manager == nil {
		return mapErr(apperrors.ErrFeatureDisabled)
	}
	var req updateSoftwareRequest
	if err := c.Bind(&req); err != nil {
		return mapErr(apperrors.Wrap(apperrors.ErrDataError, err))
	}
	if req.BuildID == "" {
		return mapErr(&apperrors.ValidationError{Field: "build_id", Message: "must not be empty"})
	}
	if err := s.manager.RequestUpdateSoftware(c.Request().Context(), req.BuildID, req.Reboot); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// requestRebootHandler asks the manager to reboot the host system.
func (s *Server) requestRebootHandler(c *echo.Context) error {
	if s.manager == nil {
		return mapErr(apperrors.ErrFeatureDisabled)
	}
	if err := s.manager.RequestReboot(c.Request().Context()); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusAccepted)
}
