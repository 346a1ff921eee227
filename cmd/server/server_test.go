package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moonrise.game/internal/persistence/indexdb"
	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/tuning"
	"moonrise.game/internal/transport/ws"
)

var discard = log.New(io.Discard, "", 0)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	e, err := engine.New(engine.Config{Catalogs: cats, Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func TestParseEnv(t *testing.T) {
	t.Setenv("DEPLOY_ENV", "production")
	t.Setenv("MOONRISE_AUTOSAVE_TICKS", "48")
	cfg, err := parseEnv()
	if err != nil {
		t.Fatalf("parseEnv: %v", err)
	}
	if cfg.AutosaveTicks != 48 || cfg.IndexBackend != "sqlite" || !cfg.HistoryLog {
		t.Fatalf("cfg: %+v", cfg)
	}
	if cfg.adminHTTP() {
		t.Fatalf("admin should default off in production")
	}

	t.Setenv("MOONRISE_ENABLE_ADMIN_HTTP", "true")
	cfg, err = parseEnv()
	if err != nil {
		t.Fatalf("parseEnv: %v", err)
	}
	if !cfg.adminHTTP() {
		t.Fatalf("explicit admin flag ignored")
	}

	t.Setenv("MOONRISE_AUTOSAVE_TICKS", "soon")
	if _, err := parseEnv(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()
	if idx, err := openRuntimeIndex(dir, "none"); err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}
	if _, err := openRuntimeIndex(dir, "postgres"); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	idx, err := openRuntimeIndex(dir, "")
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()
}

func TestRestoreGame_IndexLegacyWinsWhenNewer(t *testing.T) {
	dir := t.TempDir()
	path := indexdb.DefaultPath(dir)
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stored := model.NewLegacy()
	stored.Rebirths = 4
	stored.BloodEchoes = 9
	idx.RecordLegacy(stored)
	_ = idx.Close()

	idx, err = indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	e := newEngine(t)
	restoreGame(context.Background(), e, filepath.Join(dir, "missing.save.zst"), idx, discard)
	got := e.Snapshot().Legacy
	if got.Rebirths != 4 || got.BloodEchoes != 9 {
		t.Fatalf("legacy: %+v", got)
	}
}

func TestRestoreGame_SaveLegacyKeptWhenAhead(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t)
	save := e.ExportSave()
	save.Legacy.Rebirths = 2
	save.Legacy.BloodEchoes = 5
	sp := savefile.DefaultPath(dir)
	if err := savefile.Write(sp, save); err != nil {
		t.Fatalf("write: %v", err)
	}

	idx, err := indexdb.OpenSQLite(indexdb.DefaultPath(dir))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	e = newEngine(t)
	restoreGame(context.Background(), e, sp, idx, discard)
	if got := e.Snapshot().Legacy; got.Rebirths != 2 || got.BloodEchoes != 5 {
		t.Fatalf("legacy: %+v", got)
	}
}

func TestRunSaveWriter_WritesLatest(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "save", "latest.save.zst")
	e := newEngine(t)

	saves := make(chan savefile.SaveV1, 2)
	older := e.ExportSave()
	older.Player.Day = 10
	newer := e.ExportSave()
	newer.Player.Day = 20
	saves <- older
	saves <- newer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runSaveWriter(ctx, saves, sp, dir, nil, discard) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		got, err := savefile.Read(sp)
		if err == nil && got.Player.Day == 20 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("save never written: day=%d err=%v", got.Player.Day, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("writer: %v", err)
	}
}

func TestMux_HealthMetricsAndAdmin(t *testing.T) {
	e := newEngine(t)
	saves := make(chan savefile.SaveV1, 1)
	mux := newMux(httpDeps{
		engine:    e,
		ws:        ws.NewServer(e, nil),
		saves:     saves,
		adminHTTP: true,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"moonrise_day 0", "moonrise_running 0", `moonrise_clock{state="RUNNING"} 1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "moonrise_index_") {
		t.Fatalf("index metrics without an index")
	}

	// httptest requests come from 192.0.2.1.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote admin: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/save", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	select {
	case s := <-saves:
		if s.Player.Day != 0 {
			t.Fatalf("queued save day: %d", s.Player.Day)
		}
	default:
		t.Fatalf("no save queued")
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/rebirths", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("rebirths without index: %d", rec.Code)
	}
}

func TestMux_AdminDisabled(t *testing.T) {
	e := newEngine(t)
	mux := newMux(httpDeps{engine: e, ws: ws.NewServer(e, nil)})
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("admin disabled: %d", rec.Code)
	}
}
