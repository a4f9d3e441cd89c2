package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rfidlock/doorkeeper/internal/config"
	"github.com/rfidlock/doorkeeper/internal/db"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/service"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store/memory"
	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store/sqlite"
	"github.com/rfidlock/doorkeeper/internal/events"
	"github.com/rfidlock/doorkeeper/internal/events/live"
	"github.com/rfidlock/doorkeeper/internal/events/natsbus"
	"github.com/rfidlock/doorkeeper/internal/grpcserver"
	"github.com/rfidlock/doorkeeper/internal/httpapi"
	"github.com/rfidlock/doorkeeper/internal/logging"
	"github.com/rfidlock/doorkeeper/internal/metrics"
	"github.com/rfidlock/doorkeeper/internal/platform/otel"
)

const serviceName = "doorkeeper-server"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal(err)
	}
}

// run owns every resource it opens; an early return still unwinds the
// deferred closes.
func run(cfg config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, otel.TracingConfig{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// Stores
	stores, ping, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer closeStore()

	// Events
	m := metrics.New()
	hub := live.NewHub(logger, cfg.CORSOrigins)
	defer hub.Close()
	publishers := events.Multi{hub}

	if cfg.NATSURL != "" {
		bus, err := natsbus.Connect(natsbus.Config{
			URL:    cfg.NATSURL,
			Token:  cfg.NATSToken,
			Prefix: cfg.NATSSubjectPrefix,
			Name:   serviceName,
		})
		if err != nil {
			// Events are best-effort; the API stays up without the broker.
			logger.WithError(err).Warn("NATS unavailable, events go to the live feed only")
		} else {
			defer bus.Close()
			publishers = append(publishers, bus)
			logger.WithField("url", cfg.NATSURL).Info("NATS connection established")
		}
	}

	// Services
	deps := service.Deps{
		Stores:  stores,
		Logger:  logger,
		Events:  publishers,
		Metrics: m,
	}
	policy := service.ScanPolicy{Timeout: cfg.ScanTimeout, ReadyTTL: cfg.ScanReadyTTL}

	reaper := service.NewScanReaper(stores.Scans, service.ReaperConfig{
		Policy:    policy,
		Retention: cfg.ScanRetention,
		Interval:  cfg.ReapInterval,
		Metrics:   m,
	}, logger)
	reaper.Start(ctx)
	defer reaper.Stop()

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = randomSecret()
		logger.Warn("DOORKEEPER_JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	// gRPC health listens first so a taken port fails before HTTP starts.
	grpcDone := make(chan struct{})
	if cfg.GRPCAddr != "" {
		hs, err := grpcserver.New(cfg.GRPCAddr, grpcserver.Probe(ping), 10*time.Second, logger)
		if err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		go func() {
			defer close(grpcDone)
			if err := hs.Serve(ctx); err != nil {
				logger.WithError(err).Error("grpc server error")
				stop()
			}
		}()
	} else {
		close(grpcDone)
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:          logger,
		Addr:            cfg.HTTPAddr,
		DoorService:     service.NewDoorService(deps),
		LockUserService: service.NewLockUserService(deps, policy),
		ScanService:     service.NewScanService(deps, policy),
		AccessService:   service.NewAccessService(deps, policy),
		StaffService:    service.NewStaffService(deps),
		Live:            hub,
		Metrics:         m,
		Ping:            ping,
		JWTSecret:       jwtSecret,
		TokenTTL:        cfg.TokenTTL,
		DeviceToken:     cfg.DeviceToken,
		DeviceRateLimit: cfg.DeviceRateLimit,
		CORSOrigins:     cfg.CORSOrigins,
	})

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	<-grpcDone
	return nil
}

// openStores returns the configured backend, a health probe and a close
// function.
func openStores(ctx context.Context, cfg config.Config, logger *log.Logger) (service.Stores, func(context.Context) error, func(), error) {
	if cfg.Store == "memory" {
		mem := memory.New()
		if !cfg.IsProd() {
			if err := seedMemory(ctx, mem); err != nil {
				return service.Stores{}, nil, nil, err
			}
			logger.Infof("memory store seeded with dev superuser %q", db.DevSuperuser)
		}
		if cfg.SeedFile != "" {
			logger.Warn("DOORKEEPER_SEED_FILE is ignored by the memory store")
		}
		stores := service.Stores{Doors: mem, LockUsers: mem, Keycards: mem, Scans: mem, Access: mem, Staff: mem}
		return stores, nil, func() {}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return service.Stores{}, nil, nil, err
	}
	logger.WithField("path", cfg.DBPath).Info("sqlite database ready")

	if err := seedSQLite(ctx, conn, cfg, logger); err != nil {
		conn.Close()
		return service.Stores{}, nil, nil, err
	}

	writer := db.NewWorker(conn)
	s := sqlite.New(conn, writer)
	stores := service.Stores{
		Doors:     s.Doors,
		LockUsers: s.LockUsers,
		Keycards:  s.Keycards,
		Scans:     s.Scans,
		Access:    s.Access,
		Staff:     s.Staff,
	}
	closeFn := func() {
		writer.Close()
		_ = conn.Close()
	}
	return stores, conn.PingContext, closeFn, nil
}

func seedSQLite(ctx context.Context, conn *sql.DB, cfg config.Config, logger *log.Logger) error {
	if !cfg.IsProd() {
		if err := db.SeedDev(ctx, conn); err != nil {
			return err
		}
		logger.Infof("dev seed applied, superuser %q", db.DevSuperuser)
	}
	if cfg.SeedFile == "" {
		return nil
	}
	seed, err := db.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := db.ApplySeed(ctx, conn, seed); err != nil {
		return err
	}
	logger.WithField("file", cfg.SeedFile).Info("seed file applied")
	return nil
}

func seedMemory(ctx context.Context, mem *memory.Store) error {
	now := time.Now().UTC()
	if _, err := mem.CreateDoor(ctx, store.DoorRecord{Name: "Main Door", Description: "Dev", CreatedAt: now, UpdatedAt: now}); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(db.DevSuperuserPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = mem.CreateStaff(ctx, store.StaffRecord{
		Username:     db.DevSuperuser,
		PasswordHash: string(hash),
		IsSuperuser:  true,
		CreatedAt:    now,
	})
	return err
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
