package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/sim/model"
)

type LifeArchiveMeta struct {
	Life        int                `json:"life"`
	Day         uint64             `json:"day"`
	Age         float64            `json:"age"`
	Cause       model.RebirthCause `json:"cause"`
	Job         string             `json:"job"`
	Coins       float64            `json:"coins"`
	TotalLevels int                `json:"total_levels"`
	Save        string             `json:"save"`
	CreatedAt   string             `json:"created_at"`
}

// Dir is where finished lives are kept under a data directory.
func Dir(dataDir string) string { return filepath.Join(dataDir, "archives") }

// ArchiveLifeSave copies a save taken at the end of a life into
// `dataDir/archives/life_<NNN>/`. Saves of a life still in progress are
// ignored. Re-archiving the same life overwrites it.
func ArchiveLifeSave(dataDir, savePath string, s savefile.SaveV1) (life int, archivedPath string, archived bool, err error) {
	if s.Clock != model.ClockAwaitingRebirth {
		return 0, "", false, nil
	}
	// Rebirths counts completed rebirths, so the life that just ended is one more.
	life = s.Legacy.Rebirths + 1

	dir := filepath.Join(Dir(dataDir), fmt.Sprintf("life_%03d", life))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(savePath))
	if err := copyFile(savePath, dst); err != nil {
		return 0, "", false, err
	}

	total := 0
	for _, sk := range s.Skills {
		total += sk.Level
	}
	meta := LifeArchiveMeta{
		Life:        life,
		Day:         s.Player.Day,
		Age:         s.Player.Age,
		Cause:       s.Cause,
		Job:         s.Player.ActiveJob,
		Coins:       s.Player.Coins,
		TotalLevels: total,
		Save:        filepath.Base(dst),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return life, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
