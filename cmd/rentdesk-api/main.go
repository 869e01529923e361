package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/config"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/database"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/leases"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/logging"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/maintenance"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/remote"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/server"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/syncqueue"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rentdesk-api",
		Short: "Rental management backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Optional rotating log file path")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("auth.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().Int("sync-max-retries", defaults.GetInt("sync.max_retries"), "Remote mirror retries after the first attempt")
	cmd.PersistentFlags().Duration("sync-remote-timeout", defaults.GetDuration("sync.remote_timeout"), "Timeout for each remote call")
	cmd.PersistentFlags().Bool("seed-demo", defaults.GetBool("seed.demo"), "Seed demo tenants before the first remote load")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.cookie_name", "cookie-name")
	bindFlag(cmd, "sync.max_retries", "sync-max-retries")
	bindFlag(cmd, "sync.remote_timeout", "sync-remote-timeout")
	bindFlag(cmd, "seed.demo", "seed-demo")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newTokenCommand() *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Print a session token for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
				SigningSecret: []byte(appConfig.SigningSecret),
				Issuer:        appConfig.Issuer,
				TTL:           ttl,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(args[0], email, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Owner email claim")
	cmd.Flags().StringVar(&name, "name", "", "Owner display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Config{Level: appConfig.LogLevel, File: appConfig.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := syncqueue.New(syncqueue.Config{
		MaxRetries:     retriesSetting(appConfig.Sync.MaxRetries),
		InitialBackoff: appConfig.Sync.InitialBackoff,
		MaxBackoff:     appConfig.Sync.MaxBackoff,
		AttemptTimeout: appConfig.Sync.RemoteTimeout,
		RatePerSecond:  appConfig.Sync.RatePerSecond,
		Retryable:      tenants.IsRetryable,
		Logger:         logger.Named("syncqueue"),
	})
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queue.Start(queueCtx)

	var seed []tenants.Tenant
	if appConfig.SeedDemo {
		seed = tenants.DemoTenants()
	}
	tenantStore, err := tenants.NewStore(tenants.StoreConfig{
		Remote:        remote.NewTenantStore(db, logger.Named("remote")),
		Queue:         queue,
		Clock:         time.Now,
		IDProvider:    tenants.NewUUIDProvider(),
		Logger:        logger.Named("tenants"),
		RemoteTimeout: appConfig.Sync.RemoteTimeout,
		Seed:          seed,
	})
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.Issuer,
		CookieName:    appConfig.CookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:    sessions,
		Tenants:     tenantStore,
		Leases:      leases.NewStore(leases.StoreConfig{Clock: time.Now, Logger: logger.Named("leases")}),
		Maintenance: maintenance.NewStore(maintenance.StoreConfig{Clock: time.Now, Logger: logger.Named("maintenance")}),
		Realtime:    server.NewRealtimeDispatcher(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := newHTTPServer(appConfig.HTTPAddress, handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		return shutdown(httpServer, queue, logger, shutdownTimeout)
	case err := <-errCh:
		return err
	}
}

// newHTTPServer serves handler with request contexts that are cancelled once Shutdown begins,
// so long-lived event streams end instead of holding the server open.
func newHTTPServer(address string, handler http.Handler) *http.Server {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:    address,
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	httpServer.RegisterOnShutdown(cancelBase)
	return httpServer
}

// shutdown stops HTTP first, then drains the sync queue. Each phase gets its own timeout.
func shutdown(httpServer *http.Server, queue *syncqueue.Queue, logger *zap.Logger, timeout time.Duration) error {
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), timeout)
	defer cancelHTTP()
	shutdownErr := httpServer.Shutdown(httpCtx)
	if shutdownErr != nil {
		logger.Warn("http shutdown incomplete", zap.Error(shutdownErr))
	}

	queue.Close()
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), timeout)
	defer cancelFlush()
	if err := queue.Flush(flushCtx); err != nil {
		logger.Warn("pending remote sync jobs dropped at shutdown", zap.Int("pending", queue.Len()))
	}
	return shutdownErr
}

// retriesSetting maps the configured retry count onto syncqueue.Config, where zero selects
// the default and a negative value disables retries.
func retriesSetting(configured int) int {
	if configured == 0 {
		return -1
	}
	return configured
}
