// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/pipeline"
)

func fakeBridge(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","bridge":"connected"}`))
	})
	mux.HandleFunc("/fetch-emails", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Folder string `json:"folder"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		emails := []map[string]string{}
		if req.Folder == "All Mail" {
			emails = append(emails,
				map[string]string{
					"from": "admin@supremecourt.uk", "to": "case@mobicycle.example",
					"subject": "Appeal hearing scheduled", "date": "2026-02-09T10:30:45Z",
					"messageId": "<hearing-1@supremecourt.uk>",
				},
				map[string]string{
					"from": "noreply@supremecourt.uk", "to": "case@mobicycle.example",
					"subject": "Automatic reply: filing received", "date": "2026-02-09T11:00:00Z",
					"messageId": "<auto-1@supremecourt.uk>",
				},
			)
		}
		json.NewEncoder(w).Encode(map[string]any{"emails": emails})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setup writes a sqlite-backed config and points the CLI at it.
func setup(t *testing.T) {
	t.Helper()
	srv := fakeBridge(t)
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
mail_source:
  base_url: %s
storage:
  backend: sqlite
  path: %s
`, srv.URL, filepath.Join(dir, "kv.db"))
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REDIS_URL", "")
}

// execute runs the CLI with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose = "", false
	triageStore, triageJSON = "", false
	fetchIgnoreWatermark, rulesDefault = false, false

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"version flag", []string{"--version"}, false},
		{"help flag", []string{"--help"}, false},
		{"unknown command", []string{"nonexistent-command"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun_PersistsSummaryAndWatermark(t *testing.T) {
	setup(t)

	out, err := execute(t, "run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	var sum pipeline.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("run output is not a summary: %v\n%s", err, out)
	}
	if sum.Status != pipeline.StatusComplete || sum.Step1.NewEmails != 2 {
		t.Errorf("summary = %+v", sum)
	}

	out, err = execute(t, "watermark", "get")
	if err != nil || strings.TrimSpace(out) != "2026-02-09T11:00:00Z" {
		t.Errorf("watermark get = %q, err = %v", out, err)
	}

	out, err = execute(t, "last-run")
	if err != nil || !strings.Contains(out, sum.RunID) {
		t.Errorf("last-run = %q, err = %v", out, err)
	}
}

func TestFetch_DoesNotStore(t *testing.T) {
	setup(t)

	out, err := execute(t, "fetch")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out, `"inbound": 2`) || strings.Contains(out, "messages") {
		t.Errorf("fetch output = %s", out)
	}

	out, _ = execute(t, "watermark", "get")
	if !strings.Contains(out, "No watermark") {
		t.Errorf("fetch moved the watermark: %s", out)
	}
	out, _ = execute(t, "triage", "scan")
	if !strings.Contains(out, "No pending records") {
		t.Errorf("fetch stored records: %s", out)
	}
}

func TestRouteThenTriage(t *testing.T) {
	setup(t)

	out, err := execute(t, "route")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.Contains(out, `"rawStored": 2`) {
		t.Errorf("route output = %s", out)
	}

	out, err = execute(t, "triage", "scan", "--store", "EMAIL_COURTS_SUPREME_COURT")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "COMPLEX") || !strings.Contains(out, "NO_ACTION") || !strings.Contains(out, "Total: 2") {
		t.Errorf("scan output = %s", out)
	}

	out, err = execute(t, "triage", "close", "--store", "EMAIL_COURTS_SUPREME_COURT")
	if err != nil || !strings.Contains(out, "0 triaged, 1 closed") {
		t.Errorf("close = %q, err = %v", out, err)
	}

	out, err = execute(t, "triage", "apply", "-s", "EMAIL_COURTS_SUPREME_COURT")
	if err != nil || !strings.Contains(out, "1 triaged, 0 closed") {
		t.Errorf("apply = %q, err = %v", out, err)
	}

	out, _ = execute(t, "triage", "scan", "--store", "EMAIL_COURTS_SUPREME_COURT", "--json")
	if strings.TrimSpace(out) != "null" {
		t.Errorf("pending after apply = %s", out)
	}
}

func TestWatermarkSetAndClear(t *testing.T) {
	setup(t)

	if _, err := execute(t, "watermark", "set", "not-a-time"); err == nil {
		t.Error("expected error for invalid time")
	}
	if _, err := execute(t, "watermark", "set", "2026-02-01T00:00:00+01:00"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, _ := execute(t, "watermark", "get")
	if strings.TrimSpace(out) != "2026-01-31T23:00:00Z" {
		t.Errorf("get = %q", out)
	}
	if _, err := execute(t, "watermark", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _ = execute(t, "watermark", "get")
	if !strings.Contains(out, "No watermark") {
		t.Errorf("get after clear = %q", out)
	}
}

func TestRules(t *testing.T) {
	out, err := execute(t, "rules", "list", "--default")
	if err != nil || !strings.Contains(out, "EMAIL_COURTS_SUPREME_COURT") {
		t.Errorf("rules list = %q, err = %v", out, err)
	}

	exported, err := execute(t, "rules", "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(t.TempDir(), "rules.yaml")
	os.WriteFile(path, []byte(exported), 0o600)

	out, err = execute(t, "rules", "check", path)
	if err != nil || !strings.Contains(out, "35 rules") {
		t.Errorf("rules check = %q, err = %v", out, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("rules:\n  - category: X\n    conditions: {}\n"), 0o600)
	if _, err := execute(t, "rules", "check", bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestMissingConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := execute(t, "run"); err == nil {
		t.Fatal("expected config error")
	}
}
