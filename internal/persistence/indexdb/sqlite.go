package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/tuning"
)

// SQLiteIndex is a queryable history of the game. Writes are queued and
// applied in batches by a single goroutine so the engine loop never waits on
// disk. It implements engine.Recorder.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick    atomic.Uint64
	dropRebirth atomic.Uint64
	dropEvent   atomic.Uint64
	dropLegacy  atomic.Uint64
	dropSave    atomic.Uint64
	writeErrs   atomic.Uint64
}

var _ engine.Recorder = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqRebirth
	reqNightEvent
	reqLegacy
	reqSave
)

type req struct {
	kind reqKind

	tick    engine.TickLogEntry
	rebirth engine.RebirthRecord
	event   engine.NightEventRecord
	legacy  model.Legacy
	save    saveRow
}

type saveRow struct {
	Path     string
	SavedAt  string
	Rebirths int
	Day      uint64
	Age      float64
	Coins    float64
}

type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropTickTotal    uint64 `json:"drop_tick_total"`
	DropRebirthTotal uint64 `json:"drop_rebirth_total"`
	DropEventTotal   uint64 `json:"drop_event_total"`
	DropLegacyTotal  uint64 `json:"drop_legacy_total"`
	DropSaveTotal    uint64 `json:"drop_save_total"`
	WriteErrorTotal  uint64 `json:"write_error_total"`
}

// DefaultPath is the index location under a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "index.db")
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS legacy (
			key TEXT PRIMARY KEY,
			rebirths INTEGER NOT NULL,
			blood_echoes INTEGER NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rebirths (
			rebirth INTEGER PRIMARY KEY,
			day INTEGER NOT NULL,
			age REAL NOT NULL,
			cause TEXT NOT NULL,
			total_levels INTEGER NOT NULL,
			echoes_gained INTEGER NOT NULL,
			prestige INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS night_events (
			rebirths INTEGER NOT NULL,
			day INTEGER NOT NULL,
			job TEXT NOT NULL,
			type TEXT NOT NULL,
			rep_village REAL NOT NULL,
			rep_wolf REAL NOT NULL,
			curse_level REAL NOT NULL,
			flavor TEXT NOT NULL,
			PRIMARY KEY (rebirths, day)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_night_events_type ON night_events(type);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			rebirths INTEGER NOT NULL,
			day INTEGER NOT NULL,
			age REAL NOT NULL,
			job TEXT NOT NULL,
			coins REAL NOT NULL,
			commands INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (rebirths, day)
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			saved_at TEXT NOT NULL,
			path TEXT NOT NULL,
			rebirths INTEGER NOT NULL,
			day INTEGER NOT NULL,
			age REAL NOT NULL,
			coins REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_saved_at ON saves(saved_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// enqueue never blocks; a full queue drops the row and counts it.
func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
		return
	default:
	}
	switch r.kind {
	case reqTick:
		s.dropTick.Add(1)
	case reqRebirth:
		s.dropRebirth.Add(1)
	case reqNightEvent:
		s.dropEvent.Add(1)
	case reqLegacy:
		s.dropLegacy.Add(1)
	case reqSave:
		s.dropSave.Add(1)
	}
}

func (s *SQLiteIndex) RecordTick(entry engine.TickLogEntry) {
	s.enqueue(req{kind: reqTick, tick: entry})
}

func (s *SQLiteIndex) RecordRebirth(r engine.RebirthRecord) {
	s.enqueue(req{kind: reqRebirth, rebirth: r})
}

func (s *SQLiteIndex) RecordNightEvent(r engine.NightEventRecord) {
	s.enqueue(req{kind: reqNightEvent, event: r})
}

func (s *SQLiteIndex) RecordLegacy(l model.Legacy) {
	s.enqueue(req{kind: reqLegacy, legacy: l.Clone()})
}

// RecordSave notes a save file written to path.
func (s *SQLiteIndex) RecordSave(path string, sv savefile.SaveV1) {
	if path == "" {
		return
	}
	savedAt := sv.Header.SavedAt
	if savedAt == "" {
		savedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.enqueue(req{kind: reqSave, save: saveRow{
		Path:     path,
		SavedAt:  savedAt,
		Rebirths: sv.Legacy.Rebirths,
		Day:      sv.Player.Day,
		Age:      sv.Player.Age,
		Coins:    sv.Player.Coins,
	}})
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropTickTotal:    s.dropTick.Load(),
		DropRebirthTotal: s.dropRebirth.Load(),
		DropEventTotal:   s.dropEvent.Load(),
		DropLegacyTotal:  s.dropLegacy.Load(),
		DropSaveTotal:    s.dropSave.Load(),
		WriteErrorTotal:  s.writeErrs.Load(),
	}
}

// LoadLegacy reads the last recorded legacy. ok is false when none was stored.
// Call it before recording starts; it does not see rows still in the queue.
func (s *SQLiteIndex) LoadLegacy(ctx context.Context) (model.Legacy, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM legacy WHERE key='current'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Legacy{}, false, nil
	}
	if err != nil {
		return model.Legacy{}, false, err
	}
	l := model.NewLegacy()
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return model.Legacy{}, false, fmt.Errorf("legacy row: %w", err)
	}
	if l.Talents == nil {
		l.Talents = map[string]int{}
	}
	return l, true, nil
}

// RecentRebirths returns up to limit rebirths, newest first.
func (s *SQLiteIndex) RecentRebirths(ctx context.Context, limit int) ([]engine.RebirthRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rebirth,day,age,cause,total_levels,echoes_gained,prestige FROM rebirths ORDER BY rebirth DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.RebirthRecord
	for rows.Next() {
		var (
			r        engine.RebirthRecord
			day      int64
			cause    string
			prestige int
		)
		if err := rows.Scan(&r.Rebirth, &day, &r.Age, &cause, &r.TotalLevels, &r.EchoesGained, &prestige); err != nil {
			return nil, err
		}
		r.Day = uint64(day)
		r.Cause = model.RebirthCause(cause)
		r.Prestige = prestige != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventCounts tallies recorded night events by type.
func (s *SQLiteIndex) EventCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM night_events GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// UpsertCatalogs stores the catalogs and tuning the server is running with so
// history rows can be read against the rules that produced them.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		v      any
	}
	jobs := make([]catalogs.JobDef, 0, len(cats.Jobs.Order))
	for _, name := range cats.Jobs.Order {
		jobs = append(jobs, cats.Jobs.ByName[name])
	}
	skills := make([]catalogs.SkillDef, 0, len(cats.Skills.Order))
	for _, name := range cats.Skills.Order {
		skills = append(skills, cats.Skills.ByName[name])
	}
	talents := make([]catalogs.TalentDef, 0, len(cats.Talents.Order))
	for _, id := range cats.Talents.Order {
		talents = append(talents, cats.Talents.ByID[id])
	}
	rows := []kv{
		{name: "ages", digest: cats.Ages.Digest, v: cats.Ages},
		{name: "jobs", digest: cats.Jobs.Digest, v: jobs},
		{name: "skills", digest: cats.Skills.Digest, v: skills},
		{name: "talents", digest: cats.Talents.Digest, v: talents},
		{name: "housing", digest: cats.Housing.Digest, v: cats.Housing.Tiers},
		{name: "night_events", digest: cats.Events.Digest, v: cats.Events.Pool},
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		b, err := json.Marshal(r.v)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", r.name, err)
		}
		digest := r.digest
		if digest == "" {
			digest = digestOf(b)
		}
		if _, err := stmt.Exec(r.name, digest, string(b), now); err != nil {
			return err
		}
	}
	// Tuning: store the values we actually apply (canonical JSON).
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	if _, err := stmt.Exec("tuning", digestOf(b), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func digestOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(rebirths,day,age,job,coins,commands,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertRebirth, _ := s.db.Prepare(`INSERT OR REPLACE INTO rebirths(rebirth,day,age,cause,total_levels,echoes_gained,prestige,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO night_events(rebirths,day,job,type,rep_village,rep_wolf,curse_level,flavor) VALUES(?,?,?,?,?,?,?,?)`)
	upsertLegacy, _ := s.db.Prepare(`INSERT OR REPLACE INTO legacy(key,rebirths,blood_echoes,json,updated_at) VALUES('current',?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT INTO saves(saved_at,path,rebirths,day,age,coins) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRebirth, insertEvent, upsertLegacy, insertSave} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrs.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// Legacy and rebirth rows are the ones a restart depends on; commit them
	// right away instead of waiting for the batch.
	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		urgent := false
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			exec(insertTick, r.tick.Rebirths, int64(r.tick.Day), r.tick.Age, r.tick.Job, r.tick.Coins, len(r.tick.Commands), string(b))

		case reqRebirth:
			rb := r.rebirth
			exec(insertRebirth, rb.Rebirth, int64(rb.Day), rb.Age, string(rb.Cause), rb.TotalLevels, rb.EchoesGained,
				boolInt(rb.Prestige), time.Now().UTC().Format(time.RFC3339Nano))
			urgent = true

		case reqNightEvent:
			ev := r.event
			exec(insertEvent, ev.Rebirths, int64(ev.Day), ev.Job, ev.Event.Type,
				ev.Event.Effects.RepVillage, ev.Event.Effects.RepWolf, ev.Event.Effects.CurseLevel, ev.Event.Flavor)

		case reqLegacy:
			b, _ := json.Marshal(r.legacy)
			exec(upsertLegacy, r.legacy.Rebirths, r.legacy.BloodEchoes, string(b), time.Now().UTC().Format(time.RFC3339Nano))
			urgent = true

		case reqSave:
			sv := r.save
			exec(insertSave, sv.SavedAt, sv.Path, sv.Rebirths, int64(sv.Day), sv.Age, sv.Coins)
		}
		if tx == nil {
			continue
		}
		if urgent || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
