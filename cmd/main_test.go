package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	"github.com/okian/tally/internal/adapters/http/ws"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const seedFixture = "../internal/seed/testdata/event.yaml"

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the sqlite driver is selected", func() {
			cfg.SQLitePath = filepath.Join(t.TempDir(), "tally.db")
			store, err := openStore(cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then the store answers pings", func() {
				convey.So(store.Ping(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.StorageDriver = "mongo"
			store, err := openStore(cfg)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(store, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestApplySeed(t *testing.T) {
	convey.Convey("Given an empty sqlite store", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.SQLitePath = filepath.Join(t.TempDir(), "tally.db")
		store, err := openStore(cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		convey.Convey("When the example seed is applied", func() {
			err := applySeed(ctx, store, seedFixture, logger.Nop())
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then its teams are listed", func() {
				teams, err := store.ListTeams(ctx, "hack-night")
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(teams), convey.ShouldEqual, 4)
			})

			convey.Convey("And applying it again is harmless", func() {
				convey.So(applySeed(ctx, store, seedFixture, logger.Nop()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the seed file is missing", func() {
			err := applySeed(ctx, store, filepath.Join(t.TempDir(), "none.yaml"), logger.Nop())

			convey.Convey("Then an error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestBuildSinks(t *testing.T) {
	convey.Convey("Given a websocket hub", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		hub := ws.NewHub()
		defer func() { _ = hub.Close() }()

		convey.Convey("When redis is not configured", func() {
			sinks, closeSinks := buildSinks(ctx, cfg, hub, logger.Nop())

			convey.Convey("Then only the hub receives notifications", func() {
				convey.So(len(sinks), convey.ShouldEqual, 1)
				convey.So(sinks[0].Name(), convey.ShouldEqual, "websocket")
				convey.So(closeSinks(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When redis is unreachable", func() {
			cfg.RedisAddr = "127.0.0.1:1"
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			sinks, closeSinks := buildSinks(pingCtx, cfg, hub, logger.Nop())

			convey.Convey("Then redis is skipped", func() {
				convey.So(len(sinks), convey.ShouldEqual, 1)
				convey.So(closeSinks(), convey.ShouldBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		ctx := context.Background()

		convey.Convey("When testing system metrics updater", func() {
			ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When testing service metrics update", func() {
			cfg := config.New(ctx)
			cfg.SQLitePath = filepath.Join(t.TempDir(), "tally.db")
			store, err := openStore(cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			svc := service.New(service.WithStore(store), service.WithWorkerCount(2), service.WithQueueSize(16))
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			convey.So(func() { updateServiceMetrics(ctx, svc) }, convey.ShouldNotPanic)

			tickCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			convey.So(func() { startServiceMetricsUpdater(tickCtx, svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a fully wired application", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.SQLitePath = filepath.Join(t.TempDir(), "tally.db")

		store, err := openStore(cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()
		convey.So(applySeed(ctx, store, seedFixture, logger.Nop()), convey.ShouldBeNil)

		hub := ws.NewHub()
		defer func() { _ = hub.Close() }()
		sinks, _ := buildSinks(ctx, cfg, hub, logger.Nop())

		svc := service.New(service.WithStore(store), service.WithSinks(sinks...))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		swagger.Register(ctx, mux)
		api.NewServer(svc, hub, api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit)).Register(ctx, mux)

		convey.Convey("When the health endpoint is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

			convey.Convey("Then it reports healthy", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the seeded leaderboard is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/hack-night/leaderboard", http.NoBody))

			convey.Convey("Then every seeded team is ranked", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"teamId":"alpha"`)
			})
		})

		convey.Convey("When the API docs are requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))

			convey.Convey("Then the document is served", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}
