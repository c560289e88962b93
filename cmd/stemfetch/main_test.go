package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
output_root = %q
log_dir = %q
catalog_dir = %q

[remote]
base_url = %q

[logging]
format = "json"
level = "error"
`,
		filepath.Join(base, "recordings"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "catalog"),
		baseURL,
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}

	cfgPath := writeTestConfig(t, "https://example.com")
	out, err = runCLI(t, cfgPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestInfoCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/recordings/abc123def456", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"recording":{"id":"abc123def456","startTime":"2024-03-01T20:00:00.000Z",`+
			`"guild":{"name":"Game Night"},"channel":{"name":"General"}},`+
			`"users":[{"username":"alice","track":1},{"username":"bob","track":2}]}`)
	})
	mux.HandleFunc("/api/v1/recordings/abc123def456/duration", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"duration":3723}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfgPath := writeTestConfig(t, server.URL)
	out, err := runCLI(t, cfgPath, "info", "abc123def456", "--key", "secret")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "Game Night")
	requireContains(t, out, "General")
	requireContains(t, out, "1h 2m 3s")
	requireContains(t, out, "alice")
	requireContains(t, out, "bob")
	requireContains(t, out, "20240301T200000Z_Game_Night_General_abc123def456_2u_1h02m03s")
}

func TestInfoCommandRejectsMissingKey(t *testing.T) {
	cfgPath := writeTestConfig(t, "https://example.com")
	if _, err := runCLI(t, cfgPath, "info", "abc123def456"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestRunsCommandEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t, "https://example.com")
	out, err := runCLI(t, cfgPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}
