// Package api provides the REST + WebSocket surface of spec.md §6,
// grounded on the teacher's pkg/api in shape (Echo v5, a global
// HTTPErrorHandler, a body-size-limited middleware stack) but serving
// this system's own domain. Collaborators are wired in once through the
// Dependencies struct passed to NewServer.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/adminfanout"
	"github.com/afrodite/datingcore/pkg/config"
	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/afrodite/datingcore/pkg/history"
	"github.com/afrodite/datingcore/pkg/identity"
	"github.com/afrodite/datingcore/pkg/interactions"
	"github.com/afrodite/datingcore/pkg/iterator"
	"github.com/afrodite/datingcore/pkg/managerrpc"
	"github.com/afrodite/datingcore/pkg/moderation"
	"github.com/afrodite/datingcore/pkg/push"
	"github.com/afrodite/datingcore/pkg/writeexec"
	"github.com/afrodite/datingcore/pkg/wsapi"
)

// Server is the HTTP/WS API server wiring every component engine to a
// route.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config

	identity     *identity.Store
	cache        *accountcache.AccountCache
	iter         *iterator.Engine
	interactions *interactions.Engine
	moderation   *moderation.Engine
	bus          *eventbus.Bus
	session      *wsapi.Manager
	push         *push.Engine
	admin        *adminfanout.Fanout
	manager      *managerrpc.Client
	db           *ent.Client
	exec         *writeexec.Executor
	history      *history.Recorder
}

// Dependencies bundles every collaborator Server routes to. All fields
// except Push/Admin/Manager/History are required; the first three are
// optional subsystems that return FeatureDisabled when nil, and a nil
// History turns usage recording off.
type Dependencies struct {
	Config       *config.Config
	Identity     *identity.Store
	Cache        *accountcache.AccountCache
	Iterator     *iterator.Engine
	Interactions *interactions.Engine
	Moderation   *moderation.Engine
	Bus          *eventbus.Bus
	Session      *wsapi.Manager
	Push         *push.Engine
	Admin        *adminfanout.Fanout
	Manager      *managerrpc.Client
	DB           *ent.Client
	Exec         *writeexec.Executor
	History      *history.Recorder
}

// NewServer constructs a Server with every route registered.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		echo:         echo.New(),
		cfg:          deps.Config,
		identity:     deps.Identity,
		cache:        deps.Cache,
		iter:         deps.Iterator,
		interactions: deps.Interactions,
		moderation:   deps.Moderation,
		bus:          deps.Bus,
		session:      deps.Session,
		push:         deps.Push,
		admin:        deps.Admin,
		manager:      deps.Manager,
		db:           deps.DB,
		exec:         deps.Exec,
		history:      deps.History,
	}
	s.echo.HTTPErrorHandler = s.HTTPErrorHandler
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(s.recordUsage())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")

	// Account (spec.md §6 "Account" group).
	v1.POST("/account/register", s.registerHandler)
	v1.POST("/account/refresh", s.refreshHandler)
	v1.GET("/account/state", s.accountStateHandler, s.requireAuth())
	v1.PATCH("/account/settings", s.updateSettingsHandler, s.requireAuth())
	v1.POST("/account/deletion-request", s.requestDeletionHandler, s.requireAuth())
	v1.DELETE("/account", s.deleteAccountHandler, s.requireAuth())

	// Profile (spec.md §6 "Profile" group).
	v1.GET("/profile", s.getProfileHandler, s.requireAuth())
	v1.PUT("/profile", s.updateProfileHandler, s.requireAuth())
	v1.GET("/profile/filters", s.getFiltersHandler, s.requireAuth())
	v1.PUT("/profile/filters", s.updateFiltersHandler, s.requireAuth())
	v1.POST("/profile/iterator/reset", s.iteratorResetHandler, s.requireAuth())
	v1.GET("/profile/iterator/next", s.iteratorNextHandler, s.requireAuth())

	// Chat / interactions (spec.md §6 "Chat" group).
	v1.POST("/chat/:account_id/like", s.likeHandler, s.requireAuth())
	v1.POST("/chat/:account_id/block", s.blockHandler, s.requireAuth())
	v1.POST("/chat/:account_id/messages", s.sendMessageHandler, s.requireAuth())

	// Admin (spec.md §6 "Admin" group).
	v1.GET("/admin/moderation/profile-name", s.listNameQueueHandler, s.requireAuth())
	v1.GET("/admin/moderation/profile-text", s.listTextQueueHandler, s.requireAuth())
	v1.POST("/admin/moderation/profile-name/:account_id", s.moderateNameHandler, s.requireAuth())
	v1.POST("/admin/moderation/profile-text/:account_id", s.moderateTextHandler, s.requireAuth())
	v1.GET("/admin/moderation/media", s.listMediaQueueHandler, s.requireAuth())
	v1.POST("/admin/moderation/media/:media_id", s.moderateMediaHandler, s.requireAuth())
	v1.POST("/admin/subscribe", s.adminSubscribeHandler, s.requireAuth())

	// Admin / fleet management (SPEC_FULL.md's manager-RPC supplement).
	v1.GET("/admin/system/info", s.systemInfoHandler, s.requireAuth())
	v1.GET("/admin/system/software", s.softwareInfoHandler, s.requireAuth())
	v1.POST("/admin/system/software/update", s.requestUpdateSoftwareHandler, s.requireAuth())
	v1.POST("/admin/system/reboot", s.requestRebootHandler, s.requireAuth())

	// WebSocket session (spec.md §4.I).
	v1.GET("/ws", s.wsHandler)
}

// Start serves on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener — used by tests
// that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server, part of the shutdown latch
// of spec.md §5 ("new incoming connections are refused").
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
