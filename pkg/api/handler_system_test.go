package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/managerrpc"
)

// TestSystemInfoHandlerDisabledWithoutManager guards the manager-RPC
// routes (added this review pass to wire the previously-unreachable
// managerrpc.Client) against regressing to unconditional network calls
// when no manager peer is configured.
func TestSystemInfoHandlerDisabledWithoutManager(t *testing.T) {
	s := &Server{echo: echo.New()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/system/info", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err := s.systemInfoHandler(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)
}

func TestSystemInfoHandlerDisabledManagerClient(t *testing.T) {
	client, err := managerrpc.New("")
	require.NoError(t, err)
	s := &Server{echo: echo.New(), manager: client}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/system/info", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err = s.systemInfoHandler(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)
}

func TestRequestUpdateSoftwareHandlerRejectsEmptyBuildID(t *testing.T) {
	client, err := managerrpc.New("")
	require.NoError(t, err)
	s := &Server{echo: echo.New(), manager: client}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/system/software/update", strings.NewReader(`{"build_id":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err = s.requestUpdateSoftwareHandler(c)
	require.Error(t, err)
}

func TestRequestRebootHandlerDisabledWithoutManager(t *testing.T) {
	s := &Server{echo: echo.New()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/system/reboot", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err := s.requestRebootHandler(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFeatureDisabled)
}
