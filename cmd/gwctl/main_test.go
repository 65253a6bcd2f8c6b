package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llmgw/core/internal/gwerrors"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestValidateCmd_ValidConfig(t *testing.T) {
	path := writeTempConfig(t, `{
		"strategy": {"mode": "single"},
		"targets": [{"virtual_key": "openai"}]
	}`)

	cmd := newValidateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Config is valid") {
		t.Errorf("output = %q, want a validity confirmation", out.String())
	}
}

func TestValidateCmd_InvalidConfig(t *testing.T) {
	path := writeTempConfig(t, `{"strategy": {"mode": "single"}, "targets": []}`)

	cmd := newValidateCmd()
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected a validation error for a config with no targets")
	}
	if exitCodeFor(err) != exitConfigError {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitConfigError)
	}
}

func TestValidateCmd_MissingFile(t *testing.T) {
	cmd := newValidateCmd()
	cmd.SetArgs([]string{"/nonexistent/gateway.json"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	if exitCodeFor(err) != exitConfigError {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitConfigError)
	}
}

func TestRouteCmd_RequiresModelMappings(t *testing.T) {
	path := writeTempConfig(t, `{
		"strategy": {"mode": "single"},
		"targets": [{"virtual_key": "openai"}]
	}`)

	cmd := newRouteCmd()
	cmd.SetArgs([]string{"--config", path, "gpt-4o"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error when config has no model_mappings")
	}
	if exitCodeFor(err) != exitConfigError {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), exitConfigError)
	}
}

func TestRouteCmd_DryRunSelectsDirectModel(t *testing.T) {
	path := writeTempConfig(t, `{
		"strategy": {"mode": "single"},
		"targets": [{"virtual_key": "openai"}],
		"model_mappings": [
			{"id": "fast", "provider_name": "openai", "provider_model_id": "gpt-4o-mini"}
		]
	}`)

	cmd := newRouteCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "fast"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "selected:   fast") {
		t.Errorf("output = %q, want a selected model line", out.String())
	}
}

func TestVersionCmd_PrintsVersionString(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "gwctl ") {
		t.Errorf("output = %q, want a gwctl-prefixed version string", out.String())
	}
}

func TestWriteError_MapsClassToStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, gwerrors.New(gwerrors.ClassValidation, "missing required field: model"))

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body map[string]map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["error"]["type"] != string(gwerrors.ClassValidation) {
		t.Errorf("error.type = %v, want %s", body["error"]["type"], gwerrors.ClassValidation)
	}
}
