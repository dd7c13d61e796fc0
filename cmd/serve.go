package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keylease/keylease/internal/api"
	"github.com/keylease/keylease/internal/audit"
	"github.com/keylease/keylease/internal/broker"
	"github.com/keylease/keylease/internal/config"
	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/credsource"
	"github.com/keylease/keylease/internal/lease"
	"github.com/keylease/keylease/internal/policy"
	"github.com/keylease/keylease/internal/source"
	"github.com/keylease/keylease/internal/tasks"
	"github.com/keylease/keylease/internal/validation"
	"github.com/keylease/keylease/internal/verifier"
)

const defaultPolicySyncInterval = 5 * time.Minute

var serveConfigPath string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the keylease broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log.Info().Msg("Initializing issuers...")
		registry, err := verifier.BuildRegistry(cmd.Context(), cfg.Issuers)
		if err != nil {
			return fmt.Errorf("building verifier registry: %w", err)
		}
		trust := verifier.NewStore(registry)

		log.Info().Msg("Initializing credential sources...")
		sources, err := credsource.BuildRegistry(cmd.Context(), cfg.Sources)
		if err != nil {
			return fmt.Errorf("building credential source registry: %w", err)
		}

		auditor, err := buildAuditor(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}

		store := policy.NewStore(policy.NewSnapshot(&validation.PolicySet{
			Bindings: cfg.Bindings,
			Policies: cfg.Policies,
			Roles:    cfg.Roles,
		}))

		leaseManager := lease.NewManager(sources, auditor)
		brk := broker.New(trust, store, leaseManager, auditor)

		taskCtx, cancelTasks := context.WithCancel(context.Background())
		defer cancelTasks()

		taskManager := tasks.NewManager(taskCtx)

		sweepInterval := cfg.Lease.SweepInterval
		if sweepInterval <= 0 {
			sweepInterval = lease.DefaultSweepInterval
		}
		taskManager.Register("lease-sweep", sweepInterval, leaseManager.Sweep)

		// manual trigger via the admin task API after editing the config
		reloader := source.NewTrustReloader(serveConfigPath, trust)
		taskManager.Register("trust-reload", 0, reloader.Reload)

		if cfg.PolicySource != nil {
			fetcher, err := source.BuildFetcher(cfg.PolicySource)
			if err != nil {
				return fmt.Errorf("building policy fetcher: %w", err)
			}
			syncer := source.NewSyncer(fetcher, store, trust, sourceNames(cfg.Sources))

			syncInterval := cfg.PolicySource.Sync.Interval
			if syncInterval <= 0 {
				syncInterval = defaultPolicySyncInterval
			}
			taskManager.Register("policy-sync", syncInterval, syncer.Sync)
		}

		signingKey, err := adminSigningKey()
		if err != nil {
			return err
		}

		srv := api.NewServer(brk, leaseManager, taskManager, auditor)
		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(signingKey),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")
		cancelTasks()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := auditor.Close(); err != nil {
			log.Warn().Err(err).Msg("closing audit sink")
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func buildAuditor(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return audit.NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file":
		return audit.NewFileAuditor(cfg.Path)
	case "memory", "":
		return audit.NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit sink type '%s'", cfg.Type)
	}
}

// adminSigningKey reads the HMAC key guarding the admin surface. Without
// one, a random key is generated: the server runs, but no admin session
// token can be minted against it.
func adminSigningKey() ([]byte, error) {
	if key := viper.GetString(AdminSigningKeyKey); key != "" {
		return []byte(key), nil
	}
	log.Warn().Msg("no admin signing key configured, admin API will reject all sessions")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return key, nil
}

func sourceNames(cfgs []config.SourceConfig) map[string]struct{} {
	names := make(map[string]struct{}, len(cfgs))
	for _, c := range cfgs {
		names[c.Name] = struct{}{}
	}
	return names
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "keylease.yaml", "broker configuration file")
}
