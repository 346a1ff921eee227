// Package savefile reads and writes the compressed single-slot game save.
package savefile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"moonrise.game/internal/sim/model"
)

const Version = 1

var ErrBadHeader = errors.New("savefile: bad header")

type Header struct {
	Version  int    `json:"version"`
	SavedAt  string `json:"saved_at"`
	Rebirths int    `json:"rebirths"`
	Day      uint64 `json:"day"`
}

type SaveV1 struct {
	Header Header `json:"header"`

	Player model.Player       `json:"player"`
	Skills []model.Skill      `json:"skills"`
	Legacy model.Legacy       `json:"legacy"`
	Clock  model.ClockState   `json:"clock"`
	Cause  model.RebirthCause `json:"cause,omitempty"`
}

// DefaultPath is the save location under a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "save", "latest.save.zst")
}

// Write stores s at path. The file is written next to its destination and
// renamed into place, so a crash never leaves a half-written save behind.
func Write(path string, s SaveV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	s.Header.Version = Version
	if s.Header.SavedAt == "" {
		s.Header.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.Header.Rebirths = s.Legacy.Rebirths
	s.Header.Day = s.Player.Day

	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := encode(tmp, s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func encode(f *os.File, s SaveV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := writeBody(bufio.NewWriter(enc), s); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func writeBody(bw *bufio.Writer, s SaveV1) error {
	hb, _ := json.Marshal(s.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&s); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return bw.Flush()
}

// Read loads a save. Any error means the file cannot be trusted and the caller
// should start fresh.
func Read(path string) (SaveV1, error) {
	var s SaveV1
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return s, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if h.Version != Version {
		return s, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, h.Version)
	}

	if err := json.NewDecoder(br).Decode(&s); err != nil {
		return s, fmt.Errorf("json decode: %w", err)
	}
	if s.Player.CompletedJobs == nil {
		s.Player.CompletedJobs = model.JobSet{}
	}
	if s.Legacy.Talents == nil {
		s.Legacy.Talents = map[string]int{}
	}
	return s, nil
}
