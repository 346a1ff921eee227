package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/protocol"
	"moonrise.game/internal/sim/catalogs"
	"moonrise.game/internal/sim/jobs"
	"moonrise.game/internal/sim/model"
	"moonrise.game/internal/sim/nightevents"
	"moonrise.game/internal/sim/skills"
	"moonrise.game/internal/sim/talents"
	"moonrise.game/internal/sim/tuning"
)

var (
	ErrBusy               = errors.New("engine: command queue full")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrBadArgument        = errors.New("bad command argument")
	ErrNotAwaitingRebirth = errors.New("rebirth not available")
	ErrInvalidState       = errors.New("invalid state")
)

type Config struct {
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning
	Logger   *log.Logger

	// Rand overrides the event source seeded from Tuning.Seed.
	Rand *rand.Rand

	TickLogger TickLogger
	Recorder   Recorder
	// SaveSink receives autosaves. Writing them to disk should be off-thread.
	SaveSink chan<- savefile.SaveV1

	CommandBuffer int
}

// Engine is a single-threaded idle simulation session.
// All game state must be accessed only from the loop goroutine (or from the
// caller of StepOnce/ApplyCommand when Run is not active).
type Engine struct {
	cats   *catalogs.Catalogs
	tun    tuning.Tuning
	logger *log.Logger

	player  model.Player
	ledger  *skills.Ledger
	legacy  model.Legacy
	clock   model.ClockState
	cause   model.RebirthCause
	mods    talents.Modifiers
	running bool

	events *nightevents.Resolver

	lastUnlocked []string
	eventShown   bool
	pendingCmds  []RecordedCommand

	cmds     chan protocol.CommandMsg
	stop     chan struct{}
	stopOnce sync.Once

	subsMu sync.Mutex
	subs   map[chan []byte]struct{}

	tickLogger TickLogger
	recorder   Recorder
	saveSink   chan<- savefile.SaveV1

	tuningDigest string

	seq      atomic.Uint64
	view     atomic.Value // State
	metrics  atomic.Value // Metrics
	counters counters
}

func New(cfg Config) (*Engine, error) {
	if cfg.Catalogs == nil {
		return nil, errors.New("engine: nil catalogs")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("engine: tuning: %w", err)
	}
	if cfg.Tuning.StartingJob != "" {
		if _, ok := cfg.Catalogs.Job(cfg.Tuning.StartingJob); !ok {
			return nil, fmt.Errorf("engine: starting job %q not in jobs catalog", cfg.Tuning.StartingJob)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	buf := cfg.CommandBuffer
	if buf <= 0 {
		buf = 256
	}

	e := &Engine{
		cats:       cfg.Catalogs,
		tun:        cfg.Tuning,
		logger:     logger,
		events:     nightevents.New(cfg.Catalogs, cfg.Tuning, cfg.Rand),
		cmds:       make(chan protocol.CommandMsg, buf),
		stop:       make(chan struct{}),
		subs:       map[chan []byte]struct{}{},
		tickLogger: cfg.TickLogger,
		recorder:   cfg.Recorder,
		saveSink:   cfg.SaveSink,
	}
	if b, err := json.Marshal(cfg.Tuning); err == nil {
		sum := sha256.Sum256(b)
		e.tuningDigest = hex.EncodeToString(sum[:])
	}

	e.legacy = model.NewLegacy()
	e.resetLife()
	e.publish(0)
	return e, nil
}

// resetLife starts a fresh life under the current legacy.
func (e *Engine) resetLife() {
	e.player = model.NewPlayer(e.cats.Ages.StartAge, e.tun.StartingJob)
	e.ledger = skills.NewLedger(e.cats.Skills, e.tun.XPGrowth)
	e.clock = model.ClockRunning
	e.cause = model.CauseNone
	e.eventShown = false
	e.refreshModifiers()
	e.lastUnlocked = jobs.Unlocked(e.cats, e.player.CompletedJobs, e.ledger)
}

func (e *Engine) refreshModifiers() {
	e.mods = talents.Resolve(e.cats, e.legacy, e.tun.Rewards.TalentPerLevel)
	e.ledger.Bonus = e.mods.XP
}

// Restore replaces the game with a saved one. It must not be called while Run
// is active.
func (e *Engine) Restore(s savefile.SaveV1) error {
	err := e.importState(State{
		Player: s.Player,
		Skills: s.Skills,
		Legacy: s.Legacy,
		Clock:  s.Clock,
		Cause:  s.Cause,
	})
	if err != nil {
		return err
	}
	e.publish(0)
	return nil
}

// ImportLegacy replaces only the permanent record, keeping the current life.
func (e *Engine) ImportLegacy(l model.Legacy) error {
	if l.Rebirths < 0 || l.BloodEchoes < 0 {
		return fmt.Errorf("legacy: %w", ErrInvalidState)
	}
	e.legacy = e.sanitizeLegacy(l)
	e.refreshModifiers()
	e.publish(0)
	return nil
}

func (e *Engine) importState(s State) error {
	if err := e.validateState(s); err != nil {
		return err
	}
	p := s.Player.Clone()
	if p.CompletedJobs == nil {
		p.CompletedJobs = model.JobSet{}
	}
	if _, ok := e.cats.Job(p.ActiveJob); !ok {
		p.ActiveJob = ""
	}

	ledger := skills.FromSkills(s.Skills, e.tun.XPGrowth)
	ledger.AddMissing(e.cats.Skills)

	clk, cause := s.Clock, s.Cause
	if clk == "" {
		clk = model.ClockRunning
	}
	if clk == model.ClockRunning {
		cause = model.CauseNone
	}

	e.player = p
	e.ledger = ledger
	e.legacy = e.sanitizeLegacy(s.Legacy)
	e.clock = clk
	e.cause = cause
	e.eventShown = false
	e.refreshModifiers()
	e.lastUnlocked = jobs.Unlocked(e.cats, e.player.CompletedJobs, e.ledger)
	return nil
}

func (e *Engine) validateState(s State) error {
	p := s.Player
	for name, v := range map[string]float64{
		"age": p.Age, "coins": p.Coins, "rep_village": p.RepVillage,
		"rep_wolf": p.RepWolf, "curse_level": p.CurseLevel,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite: %w", name, ErrInvalidState)
		}
	}
	if p.Age < 0 || p.Coins < 0 {
		return fmt.Errorf("negative age or coins: %w", ErrInvalidState)
	}
	if p.HousingTier < -1 || p.HousingTier >= len(e.cats.Housing.Tiers) {
		return fmt.Errorf("housing tier %d: %w", p.HousingTier, ErrInvalidState)
	}
	if s.Legacy.Rebirths < 0 || s.Legacy.BloodEchoes < 0 {
		return fmt.Errorf("legacy counters: %w", ErrInvalidState)
	}
	switch s.Clock {
	case "", model.ClockRunning:
	case model.ClockAwaitingRebirth:
		if s.Cause != model.CauseChoice && s.Cause != model.CauseOldAge {
			return fmt.Errorf("rebirth cause %q: %w", s.Cause, ErrInvalidState)
		}
	default:
		return fmt.Errorf("clock %q: %w", s.Clock, ErrInvalidState)
	}
	for _, sk := range s.Skills {
		if math.IsNaN(sk.XP) || math.IsInf(sk.XP, 0) {
			return fmt.Errorf("skill %q xp: %w", sk.Name, ErrInvalidState)
		}
	}
	return nil
}

// sanitizeLegacy drops talents the catalog no longer knows and caps levels.
func (e *Engine) sanitizeLegacy(l model.Legacy) model.Legacy {
	out := l.Clone()
	for id, lvl := range out.Talents {
		t, ok := e.cats.Talent(id)
		if !ok || lvl <= 0 {
			delete(out.Talents, id)
			continue
		}
		if lvl > t.MaxLevel {
			out.Talents[id] = t.MaxLevel
		}
	}
	return out
}

func (e *Engine) state() State {
	return State{
		Player:  e.player.Clone(),
		Skills:  e.ledger.Skills(),
		Legacy:  e.legacy.Clone(),
		Clock:   e.clock,
		Cause:   e.cause,
		Running: e.running,
	}
}

// Snapshot returns the state as of the last completed tick or command.
// Safe for concurrent use.
func (e *Engine) Snapshot() State {
	v, _ := e.view.Load().(State)
	return v.Clone()
}

// ExportSave is Snapshot in save-file form. Safe for concurrent use.
func (e *Engine) ExportSave() savefile.SaveV1 {
	return toSave(e.Snapshot())
}

func toSave(s State) savefile.SaveV1 {
	return savefile.SaveV1{
		Player: s.Player,
		Skills: s.Skills,
		Legacy: s.Legacy,
		Clock:  s.Clock,
		Cause:  s.Cause,
	}
}

func (e *Engine) queueSave() {
	if e.saveSink == nil {
		return
	}
	select {
	case e.saveSink <- toSave(e.state()):
		e.counters.savesQueued.Add(1)
	default:
		// Drop if the writer is backed up; the next autosave catches up.
		e.counters.savesDropped.Add(1)
	}
}

// Attach registers a notification channel. Messages are encoded JSON; when out
// is full the oldest message is dropped. Call detach before closing out.
func (e *Engine) Attach(out chan []byte) (detach func()) {
	e.subsMu.Lock()
	e.subs[out] = struct{}{}
	e.subsMu.Unlock()
	return func() {
		e.subsMu.Lock()
		delete(e.subs, out)
		e.subsMu.Unlock()
	}
}

func (e *Engine) emit(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		e.logger.Printf("encode notification: %v", err)
		return
	}
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for ch := range e.subs {
		if sendLatest(ch, b) {
			e.counters.dropped.Add(1)
		}
	}
}

func (e *Engine) subscriberCount() int {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	return len(e.subs)
}

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }
func (e *Engine) Tuning() tuning.Tuning        { return e.tun }
