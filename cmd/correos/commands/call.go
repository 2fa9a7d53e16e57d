package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/correos-link/internal/app"
	"github.com/florianilch/correos-link/internal/soap"
)

type callOutput struct {
	Operation string      `json:"operation"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Fields    soap.Fields `json:"fields,omitempty"`
	Value     *string     `json:"value,omitempty"`
}

func callCommand(env environment) *cli.Command {
	return &cli.Command{
		Name:  "call",
		Usage: "invoke any operation of the service",
		Description: "Arguments of the form name=value bind a parameter by name; dotted names\n" +
			"(reqTarifa.Peso=500) build nested values. Other arguments bind positionally.",
		ArgsUsage: "<operation> [name=value | value]...",
		Action: withApp(env, func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			if cmd.Args().Len() < 1 {
				return fmt.Errorf("expected an operation name")
			}
			operation := cmd.Args().First()

			args, named, err := parseCallArgs(cmd.Args().Tail())
			if err != nil {
				return err
			}

			res, err := application.Service().Call(ctx, operation, args, named)
			if err != nil {
				return err
			}

			switch r := res.(type) {
			case *soap.Structured:
				return writeJSON(cmd, callOutput{Operation: operation, Code: r.Code, Message: r.Message, Fields: r.Fields})
			case *soap.Opaque:
				return writeJSON(cmd, callOutput{Operation: operation, Value: &r.Value})
			case *soap.Fault:
				if err := writeJSON(cmd, callOutput{Operation: operation, Code: r.Code, Message: r.Message, Fields: r.Fields}); err != nil {
					return err
				}
				return r.Err()
			default:
				return fmt.Errorf("unexpected result %T", res)
			}
		}),
	}
}

// parseCallArgs splits command line arguments into positional and named
// operation arguments.
func parseCallArgs(raw []string) ([]any, map[string]any, error) {
	var args []any
	named := make(map[string]any)

	for _, arg := range raw {
		name, value, found := strings.Cut(arg, "=")
		if !found {
			args = append(args, arg)
			continue
		}
		if name == "" {
			return nil, nil, fmt.Errorf("argument %q has an empty name", arg)
		}
		if err := setPath(named, strings.Split(name, "."), value); err != nil {
			return nil, nil, fmt.Errorf("argument %q: %w", arg, err)
		}
	}

	if len(named) == 0 {
		named = nil
	}
	return args, named, nil
}

func setPath(m map[string]any, path []string, value string) error {
	key := path[0]
	if key == "" {
		return fmt.Errorf("empty path segment")
	}
	if len(path) == 1 {
		if _, exists := m[key]; exists {
			return fmt.Errorf("%s given twice", key)
		}
		m[key] = value
		return nil
	}

	child, exists := m[key]
	if !exists {
		child = make(map[string]any)
		m[key] = child
	}
	nested, ok := child.(map[string]any)
	if !ok {
		return fmt.Errorf("%s is both a value and a structure", key)
	}
	return setPath(nested, path[1:], value)
}
