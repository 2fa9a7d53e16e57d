package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/florianilch/correos-link/internal/app"
)

type tokenOutput struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

func tokenCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an access token and print it",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "ignore any cached token",
			},
		},
		Action: withApp(env, tokenAction),
	}
}

func tokenAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	var (
		token *oauth2.Token
		err   error
	)
	if cmd.Bool("force") {
		token, err = application.Tokens().Get(ctx, true)
	} else {
		token, err = application.Tokens().TokenSource(ctx).Token()
	}
	if err != nil {
		return err
	}

	return writeJSON(cmd, tokenOutput{
		AccessToken: token.AccessToken,
		TokenType:   token.Type(),
		Expiry:      token.Expiry,
	})
}
