package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"

	"moonrise.game/internal/persistence/indexdb"
	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/transport/ws"
)

type httpDeps struct {
	engine *engine.Engine
	ws     *ws.Server
	idx    *indexdb.SQLiteIndex
	saves  chan<- savefile.SaveV1
	logger *log.Logger

	adminHTTP bool
	pprofHTTP bool
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d.engine.Metrics(), d.ws.Sessions(), d.idx)
	})

	if d.adminHTTP {
		mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			s := d.engine.Snapshot()
			writeJSONResponse(rw, struct {
				State   engine.State   `json:"state"`
				Metrics engine.Metrics `json:"metrics"`
			}{State: s, Metrics: d.engine.Metrics()})
		}))
		mux.HandleFunc("/admin/v1/rebirths", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if d.idx == nil {
				http.Error(rw, "index disabled", http.StatusServiceUnavailable)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			recs, err := d.idx.RecentRebirths(r.Context(), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			counts, err := d.idx.EventCounts(r.Context())
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSONResponse(rw, struct {
				Rebirths    []engine.RebirthRecord `json:"rebirths"`
				NightEvents map[string]int         `json:"night_events"`
			}{Rebirths: recs, NightEvents: counts})
		}))
		mux.HandleFunc("/admin/v1/save", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			s := d.engine.ExportSave()
			select {
			case d.saves <- s:
			default:
				http.Error(rw, "save queue full", http.StatusServiceUnavailable)
				return
			}
			writeJSONResponse(rw, struct {
				Queued   bool   `json:"queued"`
				Day      uint64 `json:"day"`
				Rebirths int    `json:"rebirths"`
			}{Queued: true, Day: s.Player.Day, Rebirths: s.Legacy.Rebirths})
		}))
		mux.HandleFunc("/admin/v1/observe", d.ws.ObserveHandler())
	} else if d.logger != nil {
		d.logger.Printf("admin endpoints disabled (MOONRISE_ENABLE_ADMIN_HTTP=false)")
	}

	if d.pprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/v1/ws", d.ws.Handler())
	return mux
}

func writeMetrics(rw http.ResponseWriter, m engine.Metrics, sessions int, idx *indexdb.SQLiteIndex) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP moonrise_day Current in-game day.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_day gauge\n")
	fmt.Fprintf(rw, "moonrise_day %d\n", m.Day)

	fmt.Fprintf(rw, "# HELP moonrise_age Current character age in years.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_age gauge\n")
	fmt.Fprintf(rw, "moonrise_age %.3f\n", m.Age)

	fmt.Fprintf(rw, "# HELP moonrise_running Whether the scheduler is running.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_running gauge\n")
	fmt.Fprintf(rw, "moonrise_running %d\n", boolGauge(m.Running))

	fmt.Fprintf(rw, "# HELP moonrise_clock Current clock state.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_clock gauge\n")
	fmt.Fprintf(rw, "moonrise_clock{state=%q} 1\n", m.Clock)

	fmt.Fprintf(rw, "# HELP moonrise_rebirths_total Rebirths completed across all lives.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_rebirths_total counter\n")
	fmt.Fprintf(rw, "moonrise_rebirths_total %d\n", m.Rebirths)

	fmt.Fprintf(rw, "# HELP moonrise_ticks_total Ticks advanced since start.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_ticks_total counter\n")
	fmt.Fprintf(rw, "moonrise_ticks_total %d\n", m.Ticks)

	fmt.Fprintf(rw, "# HELP moonrise_commands_total Commands handled by outcome.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_commands_total counter\n")
	fmt.Fprintf(rw, "moonrise_commands_total{outcome=%q} %d\n", "applied", m.CommandsApplied)
	fmt.Fprintf(rw, "moonrise_commands_total{outcome=%q} %d\n", "rejected", m.CommandsRejected)

	fmt.Fprintf(rw, "# HELP moonrise_night_events_total Night events resolved.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_night_events_total counter\n")
	fmt.Fprintf(rw, "moonrise_night_events_total %d\n", m.NightEvents)

	fmt.Fprintf(rw, "# HELP moonrise_clients Connected websocket sessions.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_clients gauge\n")
	fmt.Fprintf(rw, "moonrise_clients %d\n", sessions)

	fmt.Fprintf(rw, "# HELP moonrise_subscribers Attached notification channels.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_subscribers gauge\n")
	fmt.Fprintf(rw, "moonrise_subscribers %d\n", m.Subscribers)

	fmt.Fprintf(rw, "# HELP moonrise_notifications_dropped_total Notifications dropped on full subscriber queues.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_notifications_dropped_total counter\n")
	fmt.Fprintf(rw, "moonrise_notifications_dropped_total %d\n", m.NotificationsDropped)

	fmt.Fprintf(rw, "# HELP moonrise_saves_total Autosaves by outcome.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_saves_total counter\n")
	fmt.Fprintf(rw, "moonrise_saves_total{outcome=%q} %d\n", "queued", m.SavesQueued)
	fmt.Fprintf(rw, "moonrise_saves_total{outcome=%q} %d\n", "dropped", m.SavesDropped)

	fmt.Fprintf(rw, "# HELP moonrise_tick_log_errors_total Tick log write failures.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_tick_log_errors_total counter\n")
	fmt.Fprintf(rw, "moonrise_tick_log_errors_total %d\n", m.TickLogErrors)

	fmt.Fprintf(rw, "# HELP moonrise_command_queue_depth Commands waiting for the loop.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_command_queue_depth gauge\n")
	fmt.Fprintf(rw, "moonrise_command_queue_depth %d\n", m.CommandQueueDepth)

	fmt.Fprintf(rw, "# HELP moonrise_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_step_ms gauge\n")
	fmt.Fprintf(rw, "moonrise_step_ms %.3f\n", m.StepMS)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP moonrise_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "moonrise_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "# HELP moonrise_index_dropped_total Index rows dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_index_dropped_total counter\n")
	fmt.Fprintf(rw, "moonrise_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "moonrise_index_dropped_total{kind=%q} %d\n", "rebirth", s.DropRebirthTotal)
	fmt.Fprintf(rw, "moonrise_index_dropped_total{kind=%q} %d\n", "night_event", s.DropEventTotal)
	fmt.Fprintf(rw, "moonrise_index_dropped_total{kind=%q} %d\n", "legacy", s.DropLegacyTotal)
	fmt.Fprintf(rw, "moonrise_index_dropped_total{kind=%q} %d\n", "save", s.DropSaveTotal)
	fmt.Fprintf(rw, "# HELP moonrise_index_write_errors_total Index write failures.\n")
	fmt.Fprintf(rw, "# TYPE moonrise_index_write_errors_total counter\n")
	fmt.Fprintf(rw, "moonrise_index_write_errors_total %d\n", s.WriteErrorTotal)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

func writeJSONResponse(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
