package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msggate/msggate/internal/address"
	"github.com/msggate/msggate/internal/config"
	"github.com/msggate/msggate/internal/credential"
	"github.com/msggate/msggate/internal/dispatch"
	"github.com/msggate/msggate/internal/event"
	"github.com/msggate/msggate/internal/gateway"
	"github.com/msggate/msggate/internal/logging"
	"github.com/msggate/msggate/internal/server"
	"github.com/msggate/msggate/internal/storage"
	"github.com/msggate/msggate/internal/transport"
)

var (
	servePort      int
	serveTransport string
	serveSession   string
	serveStateDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the gateway server: connect the session, keep it alive across
disconnects, and expose the HTTP API.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport to dial (overrides config)")
	serveCmd.Flags().StringVar(&serveSession, "session", "", "Session ID (overrides config)")
	serveCmd.Flags().StringVar(&serveStateDir, "state-dir", "", "State directory (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveStateDir)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveTransport != "" {
		cfg.Transport = serveTransport
	}
	if serveSession != "" {
		cfg.SessionID = serveSession
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if prettyLogs {
		cfg.PrettyLogs = true
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: cfg.PrettyLogs,
	})
	log := logging.Component("serve")

	log.Info().
		Str("version", Version).
		Str("session", cfg.SessionID).
		Str("transport", cfg.Transport).
		Msg("starting msggate")

	if err := cfg.EnsureStateDir(); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	dialer, ok := transport.Lookup(cfg.Transport)
	if !ok {
		return fmt.Errorf("unknown transport %q (registered: %v)", cfg.Transport, transport.Names())
	}

	store := storage.New(cfg.StoragePath())
	creds := credential.NewStore(store)
	bus := event.NewBus()
	defer bus.Close()

	manager, err := gateway.New(gateway.Config{
		SessionID:         cfg.SessionID,
		Dialer:            dialer,
		Credentials:       creds,
		Bus:               bus,
		Presenter:         printChallenge,
		ReconnectInterval: cfg.ReconnectInterval.Std(),
		DialRetryInterval: cfg.DialRetryInterval.Std(),
	})
	if err != nil {
		return err
	}
	if err := manager.Start(context.Background()); err != nil {
		return err
	}
	defer manager.Stop()

	normalizer := address.NewNormalizer(cfg.CountryCode)
	sender := dispatch.NewService(manager, normalizer, bus, cfg.RequestTimeout.Std())

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port
	serverConfig.AdminSecret = cfg.AdminSecret

	srv := server.New(serverConfig, manager, sender, bus)

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
	return nil
}

// printChallenge surfaces a pairing challenge to the operator. The payload
// format is transport-specific; the operator completes pairing out of band.
func printChallenge(challenge string) {
	pairingLog := logging.Component("pairing")
	pairingLog.Info().
		Str("challenge", challenge).
		Msg("pairing challenge received")
	fmt.Fprintf(os.Stderr, "\nPairing required. Challenge:\n\n    %s\n\n", challenge)
}
