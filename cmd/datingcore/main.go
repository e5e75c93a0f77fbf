// datingcore runs the dating-app backend core of spec.md: the REST +
// WebSocket API, the account cache, the profile iterator, the
// interaction/quota engine, the moderation queues, the event bus/push
// pipeline, and the admin notification fan-out.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/adminfanout"
	"github.com/afrodite/datingcore/pkg/api"
	"github.com/afrodite/datingcore/pkg/cleanup"
	"github.com/afrodite/datingcore/pkg/config"
	"github.com/afrodite/datingcore/pkg/database"
	"github.com/afrodite/datingcore/pkg/eventbus"
	"github.com/afrodite/datingcore/pkg/geoindex"
	"github.com/afrodite/datingcore/pkg/history"
	"github.com/afrodite/datingcore/pkg/identity"
	"github.com/afrodite/datingcore/pkg/interactions"
	"github.com/afrodite/datingcore/pkg/iterator"
	"github.com/afrodite/datingcore/pkg/managerrpc"
	"github.com/afrodite/datingcore/pkg/moderation"
	"github.com/afrodite/datingcore/pkg/push"
	"github.com/afrodite/datingcore/pkg/slack"
	"github.com/afrodite/datingcore/pkg/wsapi"
	"github.com/afrodite/datingcore/pkg/writeexec"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	cfg, err := config.Load(filepath.Join(*configDir, "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := database.LoadConfigFromEnv()
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("connected to database")

	cache := accountcache.New()
	exec := writeexec.New()

	usageHistory := history.New(dbClient.Client, 256)
	defer usageHistory.Shutdown()

	bounds := geoindex.Bounds{
		MinLat:     cfg.Location.MinLatitude,
		MaxLat:     cfg.Location.MaxLatitude,
		MinLon:     cfg.Location.MinLongitude,
		MaxLon:     cfg.Location.MaxLongitude,
		CellSideKm: cfg.Location.CellSideKm,
	}
	width, height := bounds.Dimensions()
	grid := geoindex.NewGrid(width, height)

	identityStore := identity.NewStore(dbClient.Client)

	var pushEngine *push.Engine
	if cfg.Push.Enabled {
		pushEngine = push.New(cache, dbClient.Client, exec, push.NewHTTPProvider(cfg.Push.ProviderURL, cfg.Push.ProviderTimeout))
		defer pushEngine.Shutdown()
	}

	bus := eventbus.New(promotionSink{pushEngine})

	limits := interactions.Limits{
		DailyLikeQuota: cfg.Limits.DailyLikeQuota,
		ResetHourUTC:   cfg.Limits.ResetHourUTC,
		ResetMinuteUTC: cfg.Limits.ResetMinuteUTC,
	}
	interactionsEngine := interactions.New(dbClient.Client, exec, limits, interactions.CommitHooks{
		OnMatch: func(a, b int64) {
			bus.Publish(a, eventbus.KindNewMessageReceived, nil)
			bus.Publish(b, eventbus.KindNewMessageReceived, nil)
		},
		OnLikeReceived: func(receiver int64) {
			bus.Publish(receiver, eventbus.KindReceivedLikesChanged, nil)
		},
		OnBlocked: func(blocked int64) {
			bus.Publish(blocked, eventbus.KindAccountStateChanged, nil)
		},
		OnQuotaChanged: func(account int64, likesLeft int16, syncVersion uint32) {
			cache.WriteByID(account, nil, func(e *accountcache.Entry) {
				if e.Chat != nil {
					e.Chat.LikesLeft = likesLeft
					e.Chat.LikesSyncVersion = syncVersion
				}
			})
			bus.Publish(account, eventbus.KindDailyLikesLeftChanged, nil)
		},
		OnMessage: func(recipient int64, interactionID int, messageNumber int32) {
			cache.WriteByID(recipient, nil, func(e *accountcache.Entry) {
				if e.Chat != nil {
					e.Chat.ChatDataSyncVer++
				}
			})
			bus.Publish(recipient, eventbus.KindNewMessageReceived, nil)
		},
	})

	iteratorEngine := iterator.New(grid, bounds, cache, dbClient.Client, exec, interactionsEngine)

	var adminFanout *adminfanout.Fanout
	if cfg.Admin.SlackChannel != "" {
		slackClient := slack.NewClient(os.Getenv("SLACK_BOT_TOKEN"), cfg.Admin.SlackChannel)
		adminFanout = adminfanout.New(busPublisher{bus}, slackClient)
	} else {
		adminFanout = adminfanout.New(busPublisher{bus}, nil)
	}

	moderationEngine, err := moderation.New(ctx, dbClient.Client, exec, moderation.CommitHooks{
		OnVisibilityResolved: func(accountID int64, newVisibility string, newProfileVersion [16]byte) {
			cache.WriteByID(accountID, nil, func(e *accountcache.Entry) {
				e.Visibility = accountcache.Visibility(newVisibility)
				if e.Profile != nil {
					e.Profile.Version = newProfileVersion
				}
			})
			bus.Publish(accountID, eventbus.KindAccountStateChanged, nil)
		},
		OnModerationCompleted: func(accountID int64, contentType moderation.ContentType, newState moderation.State) {
			bus.Publish(accountID, eventbus.KindProfileStringModerationComplete, nil)
			adminFanout.Trigger(categoryForModeration(contentType, newState))
		},
	})
	if err != nil {
		log.Fatalf("Failed to initialize moderation engine: %v", err)
	}

	wsManager := wsapi.New(identityStore, cache, bus)

	managerClient, err := managerrpc.New(os.Getenv("MANAGER_RPC_ADDR"))
	if err != nil {
		log.Fatalf("Failed to initialize manager RPC client: %v", err)
	}
	defer func() {
		if err := managerClient.Close(); err != nil {
			log.Printf("Error closing manager RPC client: %v", err)
		}
	}()

	server := api.NewServer(api.Dependencies{
		Config:       cfg,
		Identity:     identityStore,
		Cache:        cache,
		Iterator:     iteratorEngine,
		Interactions: interactionsEngine,
		Moderation:   moderationEngine,
		Bus:          bus,
		Session:      wsManager,
		Push:         pushEngine,
		Admin:        adminFanout,
		Manager:      managerClient,
		DB:           dbClient.Client,
		Exec:         exec,
		History:      usageHistory,
	})

	reaper := cleanup.NewService(dbClient.Client, cache, cfg.Reaper.GraceDelay, cfg.Reaper.Interval)
	reaper.Start(ctx)
	defer reaper.Stop()

	if pushEngine != nil {
		go runPeriodically(ctx, cfg.Push.ReconcileInterval, func() {
			if err := pushEngine.Reconcile(ctx); err != nil {
				log.Printf("push reconcile error: %v", err)
			}
		})
	}

	addr := ":" + cfg.HTTP.Port
	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during graceful shutdown: %v", err)
	}
	exec.Shutdown()
}

func runPeriodically(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

func categoryForModeration(contentType moderation.ContentType, state moderation.State) adminfanout.Category {
	isBotDecision := state == moderation.StateAcceptedByBot || state == moderation.StateRejectedByBot
	switch {
	case contentType == moderation.ContentTypeName && isBotDecision:
		return adminfanout.CategoryProfileNameBot
	case contentType == moderation.ContentTypeName:
		return adminfanout.CategoryProfileNameHuman
	case isBotDecision:
		return adminfanout.CategoryProfileTextBot
	default:
		return adminfanout.CategoryProfileTextHuman
	}
}

// promotionSink adapts an optional *push.Engine to eventbus.PromotionSink,
// a no-op when push is disabled.
type promotionSink struct{ engine *push.Engine }

func (p promotionSink) Promote(accountID int64, kind eventbus.Kind) {
	if p.engine == nil {
		return
	}
	p.engine.Promote(accountID, kind)
}

// busPublisher adapts *eventbus.Bus to adminfanout.Bus.
type busPublisher struct{ bus *eventbus.Bus }

func (b busPublisher) Publish(accountID int64, kind eventbus.Kind, payload any) {
	b.bus.Publish(accountID, kind, payload)
}
