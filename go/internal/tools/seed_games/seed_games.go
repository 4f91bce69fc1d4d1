package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/fanzone/go/internal/dbconfig"
	"github.com/mcdev12/fanzone/go/internal/games"
)

// Schedule mirrors the YAML season file
type Schedule struct {
	Season int `yaml:"season"`
	Weeks  []struct {
		Week  int                       `yaml:"week"`
		Games []games.CreateGameRequest `yaml:"games"`
	} `yaml:"weeks"`
}

// loadSchedule flattens the file into create requests, filling season and
// week from the enclosing blocks.
func loadSchedule(data []byte) ([]games.CreateGameRequest, error) {
	var s Schedule
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal YAML: %w", err)
	}

	var out []games.CreateGameRequest
	for _, w := range s.Weeks {
		for i, g := range w.Games {
			if g.Season == 0 {
				g.Season = s.Season
			}
			if g.Week == 0 {
				g.Week = w.Week
			}
			if err := g.Validate(); err != nil {
				return nil, fmt.Errorf("week %d game %d: %w", w.Week, i+1, err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}

func main() {
	path := flag.String("file", "go/internal/assets/schedule.yaml", "season schedule to import")
	flag.Parse()

	// 1) Load the YAML schedule
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read YAML: %v\n", err)
		os.Exit(1)
	}
	schedule, err := loadSchedule(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load schedule: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "db config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	var (
		total    = len(schedule)
		inserted int
		skipped  int
		errs     int
	)

	for _, g := range schedule {
		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO games (
              id, season, week, team1, team2, game_time, location, stream_link
            ) VALUES (
              $1,$2,$3,$4,$5,$6,$7,$8
            )
            ON CONFLICT (season, week, team1, team2) DO NOTHING
        `,
			uuid.New(), g.Season, g.Week, g.Team1, g.Team2, g.GameTime, g.Location, g.StreamLink,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting %s vs %s (week %d): %v\n", g.Team1, g.Team2, g.Week, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Games seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
