package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "moonrise.game/internal/persistence/log"
	"moonrise.game/internal/persistence/savefile"
	"moonrise.game/internal/sim/model"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "save":
			saveCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "flush":
			flushCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the runtime files under a data directory.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	var paths []string
	err := filepath.WalkDir(*dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Println(p)
	}
}

type saveSummary struct {
	Path        string           `json:"path"`
	SavedAt     string           `json:"saved_at"`
	Day         uint64           `json:"day"`
	Age         float64          `json:"age"`
	Coins       float64          `json:"coins"`
	Job         string           `json:"job"`
	Housing     int              `json:"housing_tier"`
	Clock       model.ClockState `json:"clock"`
	Rebirths    int              `json:"rebirths"`
	BloodEchoes int              `json:"blood_echoes"`
	TotalLevels int              `json:"total_levels"`
	Talents     map[string]int   `json:"talents,omitempty"`
}

func summarizeSave(path string, s savefile.SaveV1) saveSummary {
	total := 0
	for _, sk := range s.Skills {
		total += sk.Level
	}
	return saveSummary{
		Path:        path,
		SavedAt:     s.Header.SavedAt,
		Day:         s.Player.Day,
		Age:         s.Player.Age,
		Coins:       s.Player.Coins,
		Job:         s.Player.ActiveJob,
		Housing:     s.Player.HousingTier,
		Clock:       s.Clock,
		Rebirths:    s.Legacy.Rebirths,
		BloodEchoes: s.Legacy.BloodEchoes,
		TotalLevels: total,
		Talents:     s.Legacy.Talents,
	}
}

func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	path := fs.String("path", "", "save path (default: <data>/save/latest.save.zst)")
	full := fs.Bool("full", false, "print the whole save instead of a summary")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		p = savefile.DefaultPath(*dataDir)
	}
	s, err := savefile.Read(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	if *full {
		printJSON(s)
		return
	}
	printJSON(summarizeSave(p, s))
}

// logCmd prints the JSONL tick or history log, oldest file first.
func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kind := fs.String("kind", "", "history filter: rebirth|night_event|legacy")
	_ = fs.Parse(args)

	which := "history"
	if fs.NArg() > 0 {
		which = strings.TrimSpace(fs.Arg(0))
	}
	var dir, prefix string
	switch which {
	case "history":
		dir, prefix = persistlog.HistoryDir(*dataDir), "history"
	case "events", "ticks":
		dir, prefix = persistlog.TickDir(*dataDir), "events"
	default:
		fmt.Fprintln(os.Stderr, "unknown log:", which, "(want history|events)")
		os.Exit(2)
	}

	files, err := persistlog.Files(dir, prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(line []byte) error {
			if *kind != "" && which == "history" {
				var rec persistlog.HistoryRecord
				if err := json.Unmarshal(line, &rec); err != nil {
					return err
				}
				if rec.Kind != *kind {
					return nil
				}
			}
			fmt.Println(string(line))
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(f), err)
			os.Exit(1)
		}
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
