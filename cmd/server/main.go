package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	persistlog "moonrise.game/internal/persistence/log"
	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/protocol"
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/sim/tuning"
	"moonrise.game/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		savePath   = flag.String("save", "", "save file (default: <data>/save/latest.save.zst)")
		autostart  = flag.Bool("autostart", false, "start the clock without waiting for a client START")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite history index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	envCfg, err := parseEnv()
	if err != nil {
		logger.Fatalf("%v", err)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if envCfg.AutosaveTicks > 0 {
		tune.AutosaveEveryTicks = envCfg.AutosaveTicks
	}

	sp := strings.TrimSpace(*savePath)
	if sp == "" {
		sp = savefile.DefaultPath(*dataDir)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	backend := envCfg.IndexBackend
	if *disableDB {
		backend = "none"
	}
	idx, err := openRuntimeIndex(*dataDir, backend)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	defer tickLog.Close()

	var recorders []engine.Recorder
	if idx != nil {
		recorders = append(recorders, idx)
	}
	if envCfg.HistoryLog {
		history := persistlog.NewHistoryLogger(*dataDir, logger)
		defer history.Close()
		recorders = append(recorders, history)
	}

	saves := make(chan savefile.SaveV1, 2)
	e, err := engine.New(engine.Config{
		Catalogs:   cats,
		Tuning:     tune,
		Logger:     log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds),
		TickLogger: tickLog,
		Recorder:   engine.Recorders(recorders...),
		SaveSink:   saves,
	})
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	restoreGame(ctx, e, sp, idx, logger)
	if *autostart {
		if err := e.Submit(protocol.CommandMsg{Type: protocol.TypeStart, ProtocolVersion: protocol.Version}); err != nil {
			logger.Printf("autostart: %v", err)
		}
	}

	wsSrv := ws.NewServer(e, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	srv := &http.Server{
		Addr: *addr,
		Handler: newMux(httpDeps{
			engine:    e,
			ws:        wsSrv,
			idx:       idx,
			saves:     saves,
			logger:    logger,
			adminHTTP: envCfg.adminHTTP(),
			pprofHTTP: envCfg.EnablePprofHTTP,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var saveRec saveRecorder
	if idx != nil {
		saveRec = idx
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := e.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return runSaveWriter(gctx, saves, sp, *dataDir, saveRec, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Printf("server stopped: %v", err)
	}

	// Engine loop is gone; the published view is final.
	final := e.ExportSave()
	if err := savefile.Write(sp, final); err != nil {
		logger.Printf("final save: %v", err)
	} else {
		logger.Printf("saved day=%d rebirths=%d to %s", final.Player.Day, final.Legacy.Rebirths, sp)
		if saveRec != nil {
			saveRec.RecordSave(sp, final)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
