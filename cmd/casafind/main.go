package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/casafind/casafind/internal/account"
	"github.com/casafind/casafind/internal/httpapi"
	"github.com/casafind/casafind/internal/listing"
	"github.com/casafind/casafind/internal/sched"
	"github.com/casafind/casafind/internal/store/gormstore"
	"github.com/casafind/casafind/pkg/membership"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL     = "database-url"
	flagListenAddr      = "listen-addr"
	flagAllowedOrigins  = "allowed-origins"
	flagTokenSigningKey = "token-signing-key"
	flagTokenIssuer     = "token-issuer"
	flagTokenTTL        = "token-ttl"
	flagWebhookSecret   = "webhook-secret"
	flagSweepSchedule   = "sweep-schedule"

	configKeyDatabaseURL     = "database_url"
	configKeyListenAddr      = "listen_addr"
	configKeyAllowedOrigins  = "allowed_origins"
	configKeyTokenSigningKey = "token_signing_key"
	configKeyTokenIssuer     = "token_issuer"
	configKeyTokenTTL        = "token_ttl"
	configKeyWebhookSecret   = "webhook_secret"
	configKeySweepSchedule   = "sweep_schedule"

	defaultDatabaseURL = "sqlite:///tmp/casafind.db"
	defaultListenAddr  = ":8080"
)

type runtimeConfig struct {
	DatabaseURL     string
	ListenAddr      string
	AllowedOrigins  string
	TokenSigningKey string
	TokenIssuer     string
	TokenTTL        time.Duration
	WebhookSecret   string
	SweepSchedule   string
}

func main() {
	_ = godotenv.Load()
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "casafind: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "casafind",
		Short:         "Real estate marketplace API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "Comma-delimited CORS origins")
	cmd.Flags().String(flagTokenSigningKey, "", "HMAC key for bearer tokens")
	cmd.Flags().String(flagTokenIssuer, "", "Issuer claim for bearer tokens")
	cmd.Flags().Duration(flagTokenTTL, 24*time.Hour, "Bearer token lifetime")
	cmd.Flags().String(flagWebhookSecret, "", "HMAC key for payment webhook signatures")
	cmd.Flags().String(flagSweepSchedule, sched.DefaultSweepSchedule, "Cron schedule for the expiry sweep")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL:     "DATABASE_URL",
		configKeyListenAddr:      "HTTP_LISTEN_ADDR",
		configKeyAllowedOrigins:  "ALLOWED_ORIGINS",
		configKeyTokenSigningKey: "TOKEN_SIGNING_KEY",
		configKeyTokenIssuer:     "TOKEN_ISSUER",
		configKeyTokenTTL:        "TOKEN_TTL",
		configKeyWebhookSecret:   "WEBHOOK_SECRET",
		configKeySweepSchedule:   "SWEEP_SCHEDULE",
	}
	for key, envName := range envBindings {
		if err := viper.BindEnv(key, envName); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDatabaseURL:     flagDatabaseURL,
		configKeyListenAddr:      flagListenAddr,
		configKeyAllowedOrigins:  flagAllowedOrigins,
		configKeyTokenSigningKey: flagTokenSigningKey,
		configKeyTokenIssuer:     flagTokenIssuer,
		configKeyTokenTTL:        flagTokenTTL,
		configKeyWebhookSecret:   flagWebhookSecret,
		configKeySweepSchedule:   flagSweepSchedule,
	}
	for key, flagName := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.TokenSigningKey = viper.GetString(configKeyTokenSigningKey)
	cfg.TokenIssuer = viper.GetString(configKeyTokenIssuer)
	cfg.TokenTTL = viper.GetDuration(configKeyTokenTTL)
	cfg.WebhookSecret = viper.GetString(configKeyWebhookSecret)
	cfg.SweepSchedule = viper.GetString(configKeySweepSchedule)

	if cfg.TokenSigningKey == "" {
		return fmt.Errorf("token signing key is required")
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	store := gormstore.New(gormDB)
	clock := func() int64 { return time.Now().UTC().Unix() }

	membershipService, err := membership.NewService(store, clock,
		membership.WithOperationLogger(zapOperationLogger{logger: logger}))
	if err != nil {
		return fmt.Errorf("membership service init: %w", err)
	}
	accountService, err := account.NewService(store, clock)
	if err != nil {
		return fmt.Errorf("account service init: %w", err)
	}
	listingService, err := listing.NewService(store, membershipService, clock)
	if err != nil {
		return fmt.Errorf("listing service init: %w", err)
	}

	scheduler, err := sched.NewScheduler(membershipService, logger, cfg.SweepSchedule, 0)
	if err != nil {
		return fmt.Errorf("scheduler init: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	httpConfig := httpapi.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		TokenSigningKey: cfg.TokenSigningKey,
		TokenIssuer:     cfg.TokenIssuer,
		TokenTTL:        cfg.TokenTTL,
		WebhookSecret:   cfg.WebhookSecret,
	}
	services := httpapi.Services{
		Accounts:   accountService,
		Membership: membershipService,
		Listings:   listingService,
	}
	return httpapi.Run(ctx, httpConfig, services, logger)
}

type zapOperationLogger struct {
	logger *zap.Logger
}

func (operationLogger zapOperationLogger) LogOperation(ctx context.Context, entry membership.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID),
		zap.String("tier", entry.Tier.String()),
		zap.Int64("credit_balance", entry.CreditBalance),
		zap.String("status", entry.Status),
	}
	if entry.PaymentReference != "" {
		fields = append(fields, zap.String("payment_reference", entry.PaymentReference))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("membership operation", fields...)
		return
	}
	operationLogger.logger.Info("membership operation", fields...)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "casafind.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := db.AutoMigrate(gormstore.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
