package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/sim/model"
)

// JSONLZstdWriter appends JSON lines to zstd files rotated every UTC hour.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Files lists the rotated files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadJSONL calls fn for every line of a rotated file. Files reopened within
// the same hour hold several zstd frames; they are read back to back.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

var _ engine.TickLogger = (*TickLogger)(nil)

func TickDir(dataDir string) string { return filepath.Join(dataDir, "events") }

func NewTickLogger(dataDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(TickDir(dataDir), "events")}
}

func (l *TickLogger) WriteTick(v engine.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                          { return l.w.Close() }

// HistoryLogger keeps rebirths, night events and legacy changes as a plain
// append-only log next to the SQLite index. Tick rows are left to TickLogger.
type HistoryLogger struct {
	w      *JSONLZstdWriter
	logger interface{ Printf(string, ...any) }
}

var _ engine.Recorder = (*HistoryLogger)(nil)

// HistoryRecord is one line of the history log.
type HistoryRecord struct {
	Kind       string                   `json:"kind"`
	At         string                   `json:"at"`
	Rebirth    *engine.RebirthRecord    `json:"rebirth,omitempty"`
	NightEvent *engine.NightEventRecord `json:"night_event,omitempty"`
	Legacy     *model.Legacy            `json:"legacy,omitempty"`
}

const (
	KindRebirth    = "rebirth"
	KindNightEvent = "night_event"
	KindLegacy     = "legacy"
)

func HistoryDir(dataDir string) string { return filepath.Join(dataDir, "history") }

// NewHistoryLogger writes under dataDir. Write errors go to logger when set.
func NewHistoryLogger(dataDir string, logger interface{ Printf(string, ...any) }) *HistoryLogger {
	return &HistoryLogger{w: NewJSONLZstdWriter(HistoryDir(dataDir), "history"), logger: logger}
}

func (l *HistoryLogger) RecordTick(engine.TickLogEntry) {}

func (l *HistoryLogger) RecordRebirth(r engine.RebirthRecord) {
	l.write(HistoryRecord{Kind: KindRebirth, Rebirth: &r})
}

func (l *HistoryLogger) RecordNightEvent(r engine.NightEventRecord) {
	l.write(HistoryRecord{Kind: KindNightEvent, NightEvent: &r})
}

func (l *HistoryLogger) RecordLegacy(legacy model.Legacy) {
	legacy = legacy.Clone()
	l.write(HistoryRecord{Kind: KindLegacy, Legacy: &legacy})
}

func (l *HistoryLogger) write(rec HistoryRecord) {
	rec.At = l.w.now().UTC().Format(time.RFC3339)
	if err := l.w.Write(rec); err != nil && l.logger != nil {
		l.logger.Printf("history log: %v", err)
	}
}

func (l *HistoryLogger) Close() error { return l.w.Close() }
