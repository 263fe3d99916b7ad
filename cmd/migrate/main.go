// Package main provides the selection database migration runner.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	dbCfg := cfg.Database

	n := *steps
	switch *direction {
	case "up":
	case "down":
		if n == 0 {
			log.Fatalf("down migrations require -steps > 0")
		}
		n = -n
	default:
		log.Fatalf("invalid direction %q: must be 'up' or 'down'", *direction)
	}

	version, changed, err := postgres.Migrate(dbCfg.DSN(), dbCfg.Migrations, n)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	elapsed := time.Since(start)
	if !changed {
		fmt.Fprintf(os.Stdout, "no changes (version=%d) [%s]\n", version, elapsed)
		return
	}
	fmt.Fprintf(os.Stdout, "migrated %s to version=%d [%s]\n", *direction, version, elapsed)
}
