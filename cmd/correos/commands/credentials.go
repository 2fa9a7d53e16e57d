package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/correos-link/internal/app"
)

func credentialsCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "manage the stored account password",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "store the account password in the configured password storage",
				Action: func(ctx context.Context, cmd *cli.Command) (err error) {
					cfg, shutdown, err := setup(ctx, env, cmd)
					if err != nil {
						return err
					}
					defer func() {
						if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
							err = errors.Join(err, shutdownErr)
						}
					}()

					return setPassword(ctx, env, cfg)
				},
			},
		},
	}
}

func setPassword(ctx context.Context, env environment, cfg *app.Config) error {
	store, err := cfg.Auth.NewPasswordStore()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("password storage %q keeps the password in the config file", cfg.Auth.PasswordStorage)
	}

	password, err := readPassword(env)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	if err := store.Write(ctx, password); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	fmt.Fprintf(os.Stderr, "password stored in %s storage\n", cfg.Auth.PasswordStorage)
	return nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(env environment) (string, error) {
	if f, ok := env.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(env.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
