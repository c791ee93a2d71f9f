package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/owner-enricher/internal/testutil"
	"github.com/Sternrassler/owner-enricher/pkg/engine"
	"github.com/Sternrassler/owner-enricher/pkg/lookup"
	"github.com/Sternrassler/owner-enricher/pkg/record"
	"github.com/Sternrassler/owner-enricher/pkg/store"
)

// clearEnv blanks every bound variable so the host environment cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestApplyEnv_Precedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKERS", "7")
	t.Setenv("GEMINI_MODEL", "from-env")

	cmd := newRootCmd()
	run, _, err := cmd.Find([]string{"run"})
	if err != nil {
		t.Fatalf("Find(run) error = %v", err)
	}
	run.RunE = func(*cobra.Command, []string) error { return nil }

	cmd.SetArgs([]string{"run", "--input", "x.csv", "--model", "from-flag"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	flags := cmd.PersistentFlags()
	if model, _ := flags.GetString("model"); model != "from-flag" {
		t.Errorf("model = %q, want from-flag (flag wins over env)", model)
	}
	if workers, _ := flags.GetInt("workers"); workers != 7 {
		t.Errorf("workers = %d, want 7 (env wins over default)", workers)
	}
	if rps, _ := flags.GetFloat64("rps"); rps != 2.0 {
		t.Errorf("rps = %v, want default 2", rps)
	}
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKERS", "many")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--input", "x.csv"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "WORKERS") {
		t.Errorf("Execute() error = %v, want a WORKERS parse error", err)
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	input := writeInput(t, "Name\nAcme\n")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--input", input})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "api key is required") {
		t.Errorf("Execute() error = %v, want missing api key", err)
	}
}

func TestRun_EnrichesFile(t *testing.T) {
	clearEnv(t)

	fake := testutil.NewFakeGemini()
	defer fake.Close()
	fake.SetDefault(testutil.NewOwnerResponse("Jane", "Doe", "https://acme.example/about", "High"))

	input := writeInput(t, "Name,Website,First Name,Last Name,Source,Confidence\n"+
		"Acme,https://acme.example,,,,\n"+
		"Beta,https://beta.example,Bob,Builder,LinkedIn,High\n")
	output := filepath.Join(t.TempDir(), "out.csv")

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{
		"run",
		"--input", input,
		"--output", output,
		"--api-key", "test-key",
		"--base-url", fake.URL(),
		"--rps", "0",
		"--progress-interval", "0",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, stderr.String())
	}

	// Beta was already enriched and must not be looked up again.
	if n := fake.GetRequestCount(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("output lines = %d, want 3", len(lines))
	}
	if want := "Jane,Doe,Acme,,https://acme.example,,,https://acme.example/about,High"; lines[1] != want {
		t.Errorf("line 1 = %q, want %q", lines[1], want)
	}
	if want := "Bob,Builder,Beta,,https://beta.example,,,LinkedIn,High"; lines[2] != want {
		t.Errorf("line 2 = %q, want %q", lines[2], want)
	}
}

func TestRun_CredentialErrorWrittenToFile(t *testing.T) {
	clearEnv(t)

	fake := testutil.NewFakeGemini()
	defer fake.Close()
	fake.SetDefault(testutil.NewLeakedKeyResponse())

	input := writeInput(t, "Name\nAcme\n")

	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--input", input, "--api-key", "leaked", "--base-url", fake.URL(),
		"--rps", "0", "--progress-interval", "0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if want := record.OwnerCredentialError + ",,Acme,,,,,System,Low"; !strings.Contains(stdout.String(), want) {
		t.Errorf("stdout = %q, want a row containing %q", stdout.String(), want)
	}
}

// testSession builds a session around looker with a fast single worker.
func testSession(t *testing.T, rows int, looker lookup.Looker) *session {
	t.Helper()

	records := make([]record.Record, rows)
	for i := range records {
		records[i] = record.Record{ID: strings.Repeat("r", i+1), BusinessName: "Business"}
	}
	st := store.New()
	if err := st.Load(records); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg := engine.DefaultConfig()
	cfg.Workers = 1
	cfg.PausePoll = 5 * time.Millisecond
	cfg.MinDelay = 0
	cfg.MaxDelay = time.Millisecond
	ctrl, err := engine.New(st, looker, cfg)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return &session{ctrl: ctrl, logger: zerolog.Nop()}
}

func TestSuperviseRun_InterruptBeforeFirstLookup(t *testing.T) {
	var calls atomic.Int64
	sess := testSession(t, 50, lookup.Func(func(ctx context.Context, r record.Record) lookup.Result {
		calls.Add(1)
		time.Sleep(time.Millisecond)
		return lookup.NotFound()
	}))

	// The signal has already arrived when supervision begins.
	interrupt, cancel := context.WithCancel(context.Background())
	cancel()
	var disarmed atomic.Bool

	done := make(chan error, 1)
	go func() {
		done <- superviseRun(context.Background(), interrupt, func() { disarmed.Store(true) }, sess, 0)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("superviseRun() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superviseRun() did not return after an early interrupt")
	}

	if !disarmed.Load() {
		t.Error("signal handling should be disarmed after the first interrupt")
	}
	if got := sess.ctrl.State(); got != engine.StateCompleted {
		t.Errorf("State() = %v, want completed", got)
	}
	// at most the lookup claimed before Stop ran
	if n := calls.Load(); n > 1 {
		t.Errorf("lookups = %d, want at most 1 after an early interrupt", n)
	}
}

func TestSuperviseRun_CompletesWithoutInterrupt(t *testing.T) {
	sess := testSession(t, 5, lookup.Func(func(ctx context.Context, r record.Record) lookup.Result {
		return lookup.Success(record.Enrichment{FirstName: "Ada", LastName: "Lovelace", Source: "site", Confidence: record.ConfidenceHigh})
	}))

	err := superviseRun(context.Background(), context.Background(), func() { t.Error("disarm called without interrupt") }, sess, time.Millisecond)
	if err != nil {
		t.Fatalf("superviseRun() error = %v", err)
	}
	if p := sess.ctrl.Progress(); p.Completed != 5 || p.State != engine.StateCompleted {
		t.Errorf("Progress = %+v, want 5 completed", p)
	}
}
