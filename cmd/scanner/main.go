package main // Entry point package

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/synapsefest/scan-gate/internal/config"
	"github.com/synapsefest/scan-gate/internal/events"
	"github.com/synapsefest/scan-gate/internal/guard"
	"github.com/synapsefest/scan-gate/internal/handler"
	"github.com/synapsefest/scan-gate/internal/history"
	"github.com/synapsefest/scan-gate/internal/localstore"
	"github.com/synapsefest/scan-gate/internal/middleware"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/remote"
	"github.com/synapsefest/scan-gate/internal/repository"
	"github.com/synapsefest/scan-gate/internal/router"
	"github.com/synapsefest/scan-gate/internal/scanner"
	"github.com/synapsefest/scan-gate/internal/syncer"
)

func main() {
	cfg := config.Load() // Load environment config
	loc := cfg.Timezone()

	// Remote document store. The connection pool tolerates the venue
	// network dropping; individual calls fail and the scan pipeline
	// falls back to the offline queue.
	store, err := remote.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("remote store: %v", err)
	}

	// Device-local persistence. Redis keeps queue and journal across
	// restarts; without it the station still runs but loses pending
	// offline scans on a crash.
	var local localstore.Store
	rdb := localstore.NewRedisClient()
	if rdb != nil {
		local = localstore.NewRedis(rdb)
	} else {
		log.Printf("redis unavailable, queued offline scans will not survive a restart")
		local = localstore.NewMemory()
	}

	attendance := repository.NewAttendanceRepo(store)
	volunteers := repository.NewVolunteerRepo(store)
	regs := repository.NewRegistrationRepo(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := offline.New(local)
	if err := queue.Load(ctx); err != nil {
		log.Printf("offline queue restore failed: %v", err)
	}

	cool := guard.New(cfg.CooldownWindow)
	hist := history.New(cfg.HistoryCap, loc)
	restoreState(ctx, local, cool, hist)

	var pub events.Publisher = events.Nop{}
	if os.Getenv("RABBITMQ_URL") != "" || os.Getenv("AMQP_URL") != "" {
		pub = events.NewAMQPPublisher()
		go func() {
			if err := events.StartAttendanceConsumer(); err != nil {
				log.Printf("attendance consumer stopped: %v", err)
			}
		}()
	}

	engine := syncer.New(syncer.Options{
		Interval:       cfg.SyncInterval,
		ProbeInterval:  cfg.ProbeInterval,
		ItemDelay:      cfg.SyncItemDelay,
		RetrySoftLimit: cfg.SyncRetrySoftLimit,
	}, queue, attendance, local, store.Ping, pub)
	go engine.Run(ctx)

	writer := scanner.NewWriter(attendance, queue, engine.Online, pub)

	frames := scanner.NewPipeSource(cfg.FramePipe)
	defer frames.Close()

	orch := scanner.New(scanner.Options{
		SamplePeriod:  cfg.SamplePeriod,
		ResultDisplay: cfg.ResultDisplay,
		EventID:       cfg.EventID,
		EventType:     cfg.EventType,
		Location:      loc,
	}, frames, cool, hist, writer, regs, attendance, engine.Online)

	// Snapshot the cooldown table and journal periodically so a crash
	// loses at most a few seconds of local state.
	go persistLoop(ctx, local, cool, hist)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, volunteers), cfg.JWTSecret)

	var limiter echo.MiddlewareFunc
	if rdb != nil {
		limiter = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	}
	scanH := handler.NewScanHandler(cfg, orch, hist, queue, engine, volunteers)
	adminH := handler.NewAdminHandler(attendance, loc)
	router.RegisterScan(e, scanH, adminH, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// Stop on SIGINT/SIGTERM: halt the camera, flush local state, let
	// in-flight requests finish.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	orch.Stop()
	cancel()
	saveState(context.Background(), local, cool, hist)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// persistLoop snapshots guard and journal state every 15 seconds until
// ctx is cancelled.
func persistLoop(ctx context.Context, local localstore.Store, cool *guard.Cooldown, hist *history.Log) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			saveState(ctx, local, cool, hist)
		}
	}
}

func saveState(ctx context.Context, local localstore.Store, cool *guard.Cooldown, hist *history.Log) {
	if b, err := json.Marshal(cool.Snapshot()); err == nil {
		if err := local.Put(ctx, localstore.KeyCooldowns, b); err != nil {
			log.Printf("persist cooldowns failed: %v", err)
		}
	}
	if b, err := json.Marshal(hist.Snapshot()); err == nil {
		if err := local.Put(ctx, localstore.KeyHistory, b); err != nil {
			log.Printf("persist history failed: %v", err)
		}
	}
}

func restoreState(ctx context.Context, local localstore.Store, cool *guard.Cooldown, hist *history.Log) {
	if b, err := local.Get(ctx, localstore.KeyCooldowns); err == nil {
		var entries map[string]time.Time
		if json.Unmarshal(b, &entries) == nil {
			cool.Restore(entries)
		}
	}
	if b, err := local.Get(ctx, localstore.KeyHistory); err == nil {
		var items []model.ScanHistoryItem
		if json.Unmarshal(b, &items) == nil {
			hist.Restore(items)
		}
	}
}
