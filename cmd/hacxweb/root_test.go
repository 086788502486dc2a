package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/hacxweb/internal/config"
	"github.com/ashureev/hacxweb/internal/registry"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{name: "version flag", args: []string{"--version"}, want: "dev"},
		{name: "help flag", args: []string{"--help"}, want: "providers"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: true},
		{name: "serve rejects args", args: []string{"serve", "extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			var stdout bytes.Buffer
			root.SetOut(&stdout)
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(stdout.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, stdout.String())
			}
		})
	}
}

func TestProvidersCommandUsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	doc := "local:\n  display_name: Local\n  base_url: http://127.0.0.1:11434/v1\n  models:\n    - {name: qwen, alias: Qwen}\n    - {name: phi, alias: Phi}\n  default_model: phi\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROVIDERS_PATH", path)

	root := newRootCmd()
	root.SetArgs([]string{"providers"})
	var stdout bytes.Buffer
	root.SetOut(&stdout)

	if err := root.Execute(); err != nil {
		t.Fatalf("providers: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"Local", "qwen - Qwen", "phi - Phi"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProvidersCommandReportsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("broken:\n  models: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROVIDERS_PATH", path)

	root := newRootCmd()
	root.SetArgs([]string{"providers"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()

	var cerr *registry.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestApplyFlagsOverridesEnvironment(t *testing.T) {
	cmd := newServeCmd()
	if err := cmd.ParseFlags([]string{"--port", "8123", "--share"}); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Port: 7860, Host: "127.0.0.1"}
	applyFlags(cmd, cfg, serveFlags{port: 8123, share: true})

	if cfg.Port != 8123 || !cfg.Share || cfg.Host != "127.0.0.1" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.BindHost() != "0.0.0.0" {
		t.Errorf("BindHost = %q", cfg.BindHost())
	}
}
