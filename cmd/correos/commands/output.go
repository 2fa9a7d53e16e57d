package commands

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
)

// writeJSON prints v as indented JSON on the command's output.
func writeJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
