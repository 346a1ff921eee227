package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"moonrise.game/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index.db)")
	limit := fs.Int("limit", 20, "result limit")
	rebirth := fs.Int("rebirth", -1, "rebirth filter (ticks, events)")
	_ = fs.Parse(args)

	q := "rebirths"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = indexdb.DefaultPath(*dataDir)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *limit, *rebirth, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q string, limit, rebirth int, emit func(any)) error {
	switch q {
	case "rebirths":
		rows, err := db.Query(`SELECT rebirth,day,age,cause,total_levels,echoes_gained,prestige,recorded_at FROM rebirths ORDER BY rebirth DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Rebirth      int     `json:"rebirth"`
				Day          int64   `json:"day"`
				Age          float64 `json:"age"`
				Cause        string  `json:"cause"`
				TotalLevels  int     `json:"total_levels"`
				EchoesGained int     `json:"echoes_gained"`
				Prestige     bool    `json:"prestige"`
				RecordedAt   string  `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Rebirth, &r.Day, &r.Age, &r.Cause, &r.TotalLevels, &r.EchoesGained, &r.Prestige, &r.RecordedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "events":
		rows, err := db.Query(`SELECT rebirths,day,job,type,rep_village,rep_wolf,curse_level,flavor FROM night_events
			WHERE (?<0 OR rebirths=?) ORDER BY rebirths DESC, day DESC LIMIT ?`, rebirth, rebirth, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Rebirths   int     `json:"rebirths"`
				Day        int64   `json:"day"`
				Job        string  `json:"job"`
				Type       string  `json:"type"`
				RepVillage float64 `json:"rep_village"`
				RepWolf    float64 `json:"rep_wolf"`
				CurseLevel float64 `json:"curse_level"`
				Flavor     string  `json:"flavor"`
			}
			if err := rows.Scan(&r.Rebirths, &r.Day, &r.Job, &r.Type, &r.RepVillage, &r.RepWolf, &r.CurseLevel, &r.Flavor); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT rebirths,day,age,job,coins,commands FROM ticks
			WHERE (?<0 OR rebirths=?) ORDER BY rebirths DESC, day DESC LIMIT ?`, rebirth, rebirth, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Rebirths int     `json:"rebirths"`
				Day      int64   `json:"day"`
				Age      float64 `json:"age"`
				Job      string  `json:"job"`
				Coins    float64 `json:"coins"`
				Commands int     `json:"commands"`
			}
			if err := rows.Scan(&r.Rebirths, &r.Day, &r.Age, &r.Job, &r.Coins, &r.Commands); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "saves":
		rows, err := db.Query(`SELECT saved_at,path,rebirths,day,age,coins FROM saves ORDER BY saved_at DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				SavedAt  string  `json:"saved_at"`
				Path     string  `json:"path"`
				Rebirths int     `json:"rebirths"`
				Day      int64   `json:"day"`
				Age      float64 `json:"age"`
				Coins    float64 `json:"coins"`
			}
			if err := rows.Scan(&r.SavedAt, &r.Path, &r.Rebirths, &r.Day, &r.Age, &r.Coins); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "legacy":
		var r struct {
			Rebirths    int    `json:"rebirths"`
			BloodEchoes int    `json:"blood_echoes"`
			UpdatedAt   string `json:"updated_at"`
			JSON        string `json:"json"`
		}
		err := db.QueryRow(`SELECT rebirths,blood_echoes,updated_at,json FROM legacy WHERE key='current'`).
			Scan(&r.Rebirths, &r.BloodEchoes, &r.UpdatedAt, &r.JSON)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no legacy recorded")
		}
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		emit(r)
		return nil

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query %q (want rebirths|events|ticks|saves|legacy|catalogs)", q)
}
