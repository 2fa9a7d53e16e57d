package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/correos-link/internal/app"
	"github.com/florianilch/correos-link/internal/correos"
)

func guideCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "guide",
		Usage: "reserve a new guide number",
		Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			guide, err := application.Service().GenerateGuideNumber(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]string{"guide_number": guide})
		}),
	}
}

func shipmentFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "shipment description (TOML)",
		Required: true,
	}
}

func registerCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "register a shipment under an existing guide number",
		ArgsUsage: "<guide-number>",
		Flags:     []cli.Flag{shipmentFileFlag()},
		Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			if err := application.Config().RequireAccount(); err != nil {
				return err
			}
			shipment, err := loadShipment(cmd.String("file"))
			if err != nil {
				return err
			}

			reg, err := application.Service().RegisterShipment(ctx, cmd.Args().First(), shipment)
			if err != nil {
				return err
			}
			return writeJSON(cmd, reg)
		}),
	}
}

func shipCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "ship",
		Usage: "generate a guide number, register the shipment and quote its tariff",
		Flags: []cli.Flag{shipmentFileFlag()},
		Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			if err := application.Config().RequireAccount(); err != nil {
				return err
			}
			shipment, err := loadShipment(cmd.String("file"))
			if err != nil {
				return err
			}

			result, err := application.Service().CreateShipment(ctx, shipment)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		}),
	}
}

func tariffCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "tariff",
		Usage: "quote the rate between two postal codes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "from",
				Usage:    "origin postal code",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "destination postal code",
				Required: true,
			},
			&cli.FloatFlag{
				Name:     "weight",
				Usage:    "weight in grams",
				Required: true,
			},
		},
		Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			origin, err := correos.ParsePostalCode(cmd.String("from"))
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			destination, err := correos.ParsePostalCode(cmd.String("to"))
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			tariff, err := application.Service().QuoteTariff(ctx, correos.TariffRequest{
				Origin:      origin,
				Destination: destination,
				WeightGrams: cmd.Float("weight"),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, tariff)
		}),
	}
}
