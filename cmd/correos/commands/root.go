package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/correos-link/internal/app"
	"github.com/florianilch/correos-link/internal/observability"
)

// shutdownTimeout bounds flushing the log pipeline on exit.
const shutdownTimeout = 5 * time.Second

// environment is what commands take from the surrounding process.
type environment struct {
	environ   func() []string
	stdin     io.Reader
	transport http.RoundTripper
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := newRootCommand(environment{
		environ:   os.Environ,
		stdin:     os.Stdin,
		transport: http.DefaultTransport,
	})
	cmd.Writer = os.Stdout
	return cmd.Run(ctx, args)
}

func newRootCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "correos",
		Usage: "Correos de Costa Rica shipping client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "OpenTelemetry log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: observability.ExporterNone,
			},
			&cli.StringFlag{
				Name:  "auth--username",
				Usage: "account username",
			},
			&cli.StringFlag{
				Name:  "auth--password-storage",
				Usage: "where the password is kept (config|file|env|keyring)",
			},
			&cli.StringFlag{
				Name:  "soap--url",
				Usage: "SOAP service endpoint",
				Value: app.DefaultConfigSOAPURL,
			},
			&cli.BoolFlag{
				Name:  "soap--disable-token-retry",
				Usage: "do not renew the token and retry when the service rejects it",
			},
			&cli.StringFlag{
				Name:  "account--client-code",
				Usage: "customer code (COD_CLIENTE)",
			},
			&cli.StringFlag{
				Name:  "account--user-id",
				Usage: "customer user (USUARIO_ID)",
			},
			&cli.StringFlag{
				Name:  "account--service-id",
				Usage: "shipping service (SERVICIO)",
				Value: app.DefaultConfigServiceID,
			},
		},
		Commands: []*cli.Command{
			tokenCommand(env),
			guideCommand(env),
			registerCommand(env),
			shipCommand(env),
			tariffCommand(env),
			placesCommand(env),
			callCommand(env),
			credentialsCommand(env),
		},
	}
}

// appAction is a command action that needs the wired application.
type appAction func(ctx context.Context, cmd *cli.Command, application *app.App) error

// withApp loads configuration, sets up logging and builds the application
// before running action.
func withApp(env environment, action appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		cfg, shutdown, err := setup(ctx, env, cmd)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := shutdown(shutdownCtx); shutdownErr != nil {
				err = errors.Join(err, fmt.Errorf("flushing logs: %w", shutdownErr))
			}
		}()

		application, err := app.New(cfg, app.WithTransport(env.transport))
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return action(ctx, cmd, application)
	}
}

// setup loads configuration and installs the logger.
func setup(ctx context.Context, env environment, cmd *cli.Command) (*app.Config, observability.ShutdownFunc, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, env.environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.Telemetry.Exporter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, shutdown, nil
}
