package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/correos-link/internal/app"
)

func placesCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "places",
		Usage: "list provinces, cantons and districts",
		Commands: []*cli.Command{
			{
				Name:  "provinces",
				Usage: "list all provinces",
				Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					places, err := application.Service().Provinces(ctx)
					if err != nil {
						return err
					}
					return writeJSON(cmd, places)
				}),
			},
			{
				Name:      "cantons",
				Usage:     "list the cantons of a province",
				ArgsUsage: "<province>",
				Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					places, err := application.Service().Cantons(ctx, cmd.Args().Get(0))
					if err != nil {
						return err
					}
					return writeJSON(cmd, places)
				}),
			},
			{
				Name:      "districts",
				Usage:     "list the districts of a canton",
				ArgsUsage: "<province> <canton>",
				Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					if err := requireArgs(cmd, 2); err != nil {
						return err
					}
					places, err := application.Service().Districts(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
					if err != nil {
						return err
					}
					return writeJSON(cmd, places)
				}),
			},
			{
				Name:      "tree",
				Usage:     "list the cantons of a province with their districts",
				ArgsUsage: "<province>",
				Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
					if err := requireArgs(cmd, 1); err != nil {
						return err
					}
					tree, err := application.Service().ProvinceTree(ctx, cmd.Args().Get(0))
					if err != nil {
						return err
					}
					return writeJSON(cmd, tree)
				}),
			},
		},
	}
}

func requireArgs(cmd *cli.Command, n int) error {
	if got := cmd.Args().Len(); got != n {
		return fmt.Errorf("expected %d arguments (%s), got %d", n, cmd.ArgsUsage, got)
	}
	return nil
}
