package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/correos-link/internal/app"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

const testConfigFile = `
log_level = "debug"

[auth]
username = "file-user"
password = "from-file"
token_url = "https://auth.example.test/Token/authenticate"

[soap]
timeout = "45s"

[account]
client_code = "111"
`

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, "correos.toml", testConfigFile)

	var cfg *app.Config
	cmd := newRootCommand(environment{})
	cmd.Commands = nil
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		var err error
		cfg, err = loadConfig(cmd.String("config"), cmd, environ(
			"CORREOS_AUTH__USERNAME=env-user",
			"CORREOS_ACCOUNT__USER_ID=USR9",
			"CORREOS_ACCOUNT__CLIENT_CODE=from-env",
			"UNRELATED=1",
		))
		return err
	}

	err := cmd.Run(context.Background(), []string{"correos", "--config", path, "--account--client-code", "222", "--soap--disable-token-retry"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug from file", cfg.LogLevel)
	}
	if cfg.Auth.Username != "env-user" {
		t.Errorf("Username = %q, want env-user (env overrides file)", cfg.Auth.Username)
	}
	if cfg.Account.ClientCode != "222" {
		t.Errorf("ClientCode = %q, want 222 (flag overrides env)", cfg.Account.ClientCode)
	}
	if cfg.Account.UserID != "USR9" {
		t.Errorf("UserID = %q, want USR9", cfg.Account.UserID)
	}
	if cfg.SOAP.Timeout != 45*time.Second {
		t.Errorf("SOAP.Timeout = %v, want 45s", cfg.SOAP.Timeout)
	}
	if !cfg.SOAP.DisableTokenRetry {
		t.Error("DisableTokenRetry = false, want true from flag")
	}
	if cfg.SOAP.URL != app.DefaultConfigSOAPURL {
		t.Errorf("SOAP.URL = %q, want default", cfg.SOAP.URL)
	}
	if cfg.Auth.PasswordStorage != app.PasswordStorageConfig || cfg.Auth.Password != "from-file" {
		t.Errorf("password storage = %q", cfg.Auth.PasswordStorage)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		environ []string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    filepath.Join(t.TempDir(), "absent.toml"),
			wantErr: "loading config file",
		},
		{
			name:    "malformed file",
			path:    writeFile(t, "bad.toml", "[auth\nusername ="),
			wantErr: "loading config file",
		},
		{
			name:    "missing username",
			environ: []string{"CORREOS_AUTH__PASSWORD=secret"},
			wantErr: "Username",
		},
		{
			name:    "invalid duration",
			environ: []string{"CORREOS_AUTH__USERNAME=u", "CORREOS_AUTH__PASSWORD=p", "CORREOS_SOAP__TIMEOUT=soon"},
			wantErr: "unmarshaling config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.path, nil, environ(tt.environ...))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("loadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadShipment(t *testing.T) {
	path := writeFile(t, "shipment.toml", `
weight_grams = 500
freight = 2500.5
notes = "Libros"
sent_at = "2026-02-03T08:00:00Z"

[sender]
name = "Tienda"
address = "San Pedro"
phone = "22223333"
postal_code = "11501"

[recipient]
name = "Ana"
address = "Centro"
phone = "88887777"
postal_code = "10101"
zip = "10101"
`)

	shipment, err := loadShipment(path)
	if err != nil {
		t.Fatalf("loadShipment() error = %v", err)
	}
	if shipment.Sender.PostalCode != "11501" || shipment.Recipient.ZIP != "10101" {
		t.Errorf("parties = %+v, %+v", shipment.Sender, shipment.Recipient)
	}
	if shipment.WeightGrams != 500 || shipment.Freight != 2500.5 {
		t.Errorf("weight = %v, freight = %v", shipment.WeightGrams, shipment.Freight)
	}
	if want := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC); !shipment.SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", shipment.SentAt, want)
	}
}

func TestParseCallArgs(t *testing.T) {
	tests := []struct {
		name      string
		raw       []string
		wantArgs  []any
		wantNamed map[string]any
		wantErr   bool
	}{
		{
			name:     "positional",
			raw:      []string{"1", "01"},
			wantArgs: []any{"1", "01"},
		},
		{
			name:      "named",
			raw:       []string{"CodProvincia=1"},
			wantNamed: map[string]any{"CodProvincia": "1"},
		},
		{
			name:      "nested",
			raw:       []string{"reqTarifa.Peso=500", "reqTarifa.Servicio=73"},
			wantNamed: map[string]any{"reqTarifa": map[string]any{"Peso": "500", "Servicio": "73"}},
		},
		{
			name:      "value containing equals",
			raw:       []string{"Nota=a=b"},
			wantNamed: map[string]any{"Nota": "a=b"},
		},
		{name: "duplicate", raw: []string{"a=1", "a=2"}, wantErr: true},
		{name: "value and structure", raw: []string{"a=1", "a.b=2"}, wantErr: true},
		{name: "empty name", raw: []string{"=1"}, wantErr: true},
		{name: "empty segment", raw: []string{"a..b=1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, named, err := parseCallArgs(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseCallArgs() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCallArgs() error = %v", err)
			}
			if !equalJSON(t, args, tt.wantArgs) || !equalJSON(t, named, tt.wantNamed) {
				t.Errorf("parseCallArgs() = %v, %v; want %v, %v", args, named, tt.wantArgs, tt.wantNamed)
			}
		})
	}
}
