package main

import (
	"context"
	"errors"
	"log"
	"os"

	"moonrise.game/internal/persistence/archive"
	"moonrise.game/internal/persistence/indexdb"
	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/sim/engine"
	"moonrise.game/internal/sim/model"
)

// restoreGame loads the save at path into e. A missing or unreadable save
// leaves the fresh game in place. The index legacy replaces the save's when it
// has seen more rebirths, so a stale or deleted save never loses echoes.
func restoreGame(ctx context.Context, e *engine.Engine, path string, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	save, err := savefile.Read(path)
	switch {
	case err == nil:
		if err := e.Restore(save); err != nil {
			logger.Printf("save %s rejected, starting fresh: %v", path, err)
		} else {
			logger.Printf("resumed from save day=%d rebirths=%d saved_at=%s", save.Player.Day, save.Legacy.Rebirths, save.Header.SavedAt)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("no save at %s, starting fresh", path)
	default:
		logger.Printf("save %s unreadable, starting fresh: %v", path, err)
	}

	if idx == nil {
		return
	}
	stored, ok, err := idx.LoadLegacy(ctx)
	if err != nil {
		logger.Printf("index legacy: %v", err)
		return
	}
	current := e.Snapshot().Legacy
	if ok && preferIndexLegacy(current, stored) {
		if err := e.ImportLegacy(stored); err != nil {
			logger.Printf("index legacy rejected: %v", err)
			return
		}
		logger.Printf("legacy restored from index: rebirths=%d echoes=%d", stored.Rebirths, stored.BloodEchoes)
		return
	}
	// Keep the index in step with whatever won.
	idx.RecordLegacy(current)
}

func preferIndexLegacy(fromSave, fromIndex model.Legacy) bool {
	return fromIndex.Rebirths > fromSave.Rebirths
}

type saveRecorder interface {
	RecordSave(path string, s savefile.SaveV1)
}

// runSaveWriter writes queued saves until ctx is done. Only the newest queued
// save matters, so a backlog is collapsed before writing. A save taken when a
// life ended is also copied under dataDir/archives.
func runSaveWriter(ctx context.Context, saves <-chan savefile.SaveV1, path, dataDir string, rec saveRecorder, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-saves:
		drain:
			for {
				select {
				case newer := <-saves:
					s = newer
				default:
					break drain
				}
			}
			if err := savefile.Write(path, s); err != nil {
				logger.Printf("save write: %v", err)
				continue
			}
			if rec != nil {
				rec.RecordSave(path, s)
			}
			if life, dst, ok, err := archive.ArchiveLifeSave(dataDir, path, s); err != nil {
				logger.Printf("archive life: %v", err)
			} else if ok {
				logger.Printf("archived life %d to %s", life, dst)
			}
		}
	}
}
