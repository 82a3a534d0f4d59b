package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := Execute(context.Background())
	return out.String(), err
}

func TestIngestDirectProcessEndToEnd(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := "app:\n  env: cli\ndatabase:\n  dsn: " + filepath.Join(dir, "records.sqlite") + "\nstorage:\n  root: " + filepath.Join(dir, "objects") + "\n"
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runRoot(t, "", "--config", configPath, "init-db")
	if err != nil {
		t.Fatalf("init-db error = %v", err)
	}
	if !strings.Contains(out, "cli-processing-jobs") {
		t.Fatalf("init-db output = %q", out)
	}

	envelope := `{"httpMethod":"POST","path":"/process","body":{"data":"hello world"}}`
	out, err = runRoot(t, envelope, "--config", configPath, "ingest", "--request-id", "req-1")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode ingest output %q: %v", out, err)
	}
	if result["status"] != "ok" || result["record_id"] != "req-1" {
		t.Fatalf("ingest result = %#v", result)
	}

	out, err = runRoot(t, "", "--config", configPath, "records", "get", "req-1", "--table", "jobs", "-o", "yaml")
	if err != nil {
		t.Fatalf("records get error = %v", err)
	}
	if !strings.Contains(out, "status: completed") {
		t.Fatalf("records get output = %q", out)
	}

	out, err = runRoot(t, `{"foo":"bar"}`, "--config", configPath, "ingest", "--request-id", "req-2")
	if err == nil {
		t.Fatalf("ingest of unknown event should fail, output = %q", out)
	}
	if !strings.Contains(out, "Unknown event type") {
		t.Fatalf("unknown event output = %q", out)
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := runRoot(t, "", "schema", "storage")
	if err != nil {
		t.Fatalf("schema error = %v", err)
	}
	if !strings.Contains(out, `"eventSource"`) || !strings.Contains(out, `"aws:s3"`) {
		t.Fatalf("schema output = %q", out)
	}

	if _, err := runRoot(t, "", "schema", "users"); err == nil {
		t.Fatalf("schema users should fail")
	}
}
