package app

import (
	"context"
	"fmt"
	"time"

	"claim-oracle/internal/allowance"
	"claim-oracle/internal/chain"
	"claim-oracle/internal/clients"
	"claim-oracle/internal/config"
	"claim-oracle/internal/db"
	"claim-oracle/internal/events"
	"claim-oracle/internal/handlers"
	"claim-oracle/internal/middleware"
	"claim-oracle/internal/repository"
	"claim-oracle/internal/router"
	"claim-oracle/internal/services"
	"claim-oracle/internal/signer"
	"claim-oracle/internal/snapshot"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer everything the server process owns
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Core
	Snapshot *snapshot.Store
	Chain    *chain.ContractClient
	Signer   *signer.PrivateKeySigner
	Service  *services.AuthorizationService

	// Optional audit log and events
	DB            *gorm.DB
	IssuanceRepo  repository.IssuanceRepository
	NATSClient    *clients.NATSClient
	EventsEnabled bool

	Router *gin.Engine
}

// InitializeContainer loads the snapshot, dials the chain, unlocks the signer and
// builds the router. Audit log and NATS failures are logged and the server
// keeps running without them.
func InitializeContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*ServiceContainer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.Info("🚀 Initializing Service Container...")

	c := &ServiceContainer{Config: cfg, Logger: logger}

	// 1. Core services
	if err := c.initCoreServices(ctx); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to initialize core services: %w", err)
	}

	// 2. Audit log (optional)
	if err := c.initRepositories(); err != nil {
		logger.WithError(err).Warn("⚠️ Issuance audit log disabled")
	}

	// 3. Event services (optional)
	if err := c.initEventServices(); err != nil {
		logger.WithError(err).Warn("⚠️ Event services initialization skipped or failed")
	}

	c.Router = c.buildRouter()

	logger.Info("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initCoreServices(ctx context.Context) error {
	cfg := c.Config

	store, err := snapshot.Load(cfg.Claims.SnapshotPath)
	if err != nil {
		return err
	}
	c.Snapshot = store
	stats := store.Stats()
	c.Logger.WithFields(logrus.Fields{
		"path":      cfg.Claims.SnapshotPath,
		"addresses": stats.Addresses,
		"pairs":     stats.Pairs,
	}).Info("📦 Allocation snapshot loaded")

	parsed, err := chain.LoadABI(cfg.Blockchain.ABIPath)
	if err != nil {
		return err
	}
	contract := common.HexToAddress(cfg.Blockchain.Contract)

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := chain.Dial(dialCtx, cfg.Blockchain.RPCEndpoints, cfg.Blockchain.ChainID, contract, parsed, cfg.Blockchain.CallTimeoutDuration(), c.Logger)
	if err != nil {
		return err
	}
	c.Chain = client

	s, err := signer.NewPrivateKeySigner(cfg.Signer.PrivateKey)
	if err != nil {
		return err
	}
	c.Signer = s
	if err := s.SelfCheck(); err != nil {
		return fmt.Errorf("signer self check failed: %w", err)
	}
	c.Logger.WithField("signer", s.Address().Hex()).Info("🔑 Signer ready")

	calculator := allowance.NewCalculator(store, cfg.Claims.Decimals)
	c.Service = services.NewAuthorizationService(calculator, client, s, contract, c.Logger)
	c.Service.SetHookTimeout(cfg.Database.HookTimeoutDuration())
	return nil
}

func (c *ServiceContainer) initRepositories() error {
	if c.Config.Database.DSN == "" {
		return fmt.Errorf("database DSN not configured")
	}

	c.Logger.Info("📦 Initializing issuance repository...")
	gdb, err := db.Open(c.Config.Database.DSN)
	if err != nil {
		return err
	}
	c.DB = gdb
	c.IssuanceRepo = repository.NewIssuanceRepository(gdb)
	c.Service.SetIssuanceRecorder(repository.NewIssuanceRecorder(c.IssuanceRepo))
	return nil
}

func (c *ServiceContainer) initEventServices() error {
	natsCfg := c.Config.NATS
	if natsCfg.URL == "" {
		return fmt.Errorf("NATS not configured")
	}

	c.Logger.WithField("url", natsCfg.URL).Info("🔌 Connecting to NATS...")
	client, err := clients.NewNATSClient(natsCfg.URL, time.Duration(natsCfg.Timeout)*time.Second, c.Logger)
	if err != nil {
		return err
	}
	c.NATSClient = client
	c.Service.SetEventPublisher(events.NewClaimEventPublisher(client, natsCfg.Subject))
	c.EventsEnabled = true
	return nil
}

func (c *ServiceContainer) buildRouter() *gin.Engine {
	cfg := c.Config
	opts := router.Options{
		Claims: handlers.NewClaimHandler(c.Service, c.Logger),
		CORS: middleware.CORSOptions{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
		IndexPath:      cfg.Static.IndexPath,
		TrustedProxies: cfg.Server.TrustedProxies,
		Logger:         c.Logger,
	}

	if cfg.Admin.Enabled() {
		var lister handlers.IssuanceLister
		if c.IssuanceRepo != nil {
			lister = repository.NewIssuanceRecorder(c.IssuanceRepo)
		}
		secret := []byte(cfg.Admin.JWTSecret)
		opts.Admin = &router.AdminRoutes{
			Auth: handlers.NewAdminAuthHandler(handlers.AdminAuthConfig{
				Username:     cfg.Admin.Username,
				PasswordHash: cfg.Admin.PasswordHash,
				TOTPSecret:   cfg.Admin.TOTPSecret,
				JWTSecret:    secret,
				TokenTTL:     time.Duration(cfg.Admin.TokenTTL) * time.Hour,
			}, c.Logger),
			Handler:    handlers.NewAdminHandler(c.Service, c.Snapshot, lister, cfg.Blockchain.ChainID, c.Logger),
			JWTSecret:  secret,
			AllowedIPs: cfg.Admin.AllowedIPs,
		}
	}

	return router.SetupRouter(opts)
}

// Cleanup releases connections and wipes the signing key
func (c *ServiceContainer) Cleanup() {
	c.Logger.Info("🧹 Cleaning up Service Container...")

	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.DB != nil {
		if err := db.Close(c.DB); err != nil {
			c.Logger.WithError(err).Warn("⚠️ Failed to close database")
		}
	}
	if c.Chain != nil {
		c.Chain.Close()
	}
	if c.Signer != nil {
		c.Signer.Close()
	}

	c.Logger.Info("✅ Service Container cleaned up")
}
