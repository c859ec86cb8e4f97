package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rd-agent/backend/internal/migrations"
	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/logger"
	"github.com/rd-agent/backend/pkg/logger/console"
)

const usage = `usage: migrate <command>

commands:
  up           apply all pending migrations
  down [n]     roll back n migrations (default 1)
  version      print the current schema version
  force <v>    set the schema version and clear the dirty flag`

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Format: util.GetEnvString("LOG_FORMAT", "text"),
		Prefix: "migrate",
	})
	logger.Init(consoleLogger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	r, err := migrations.Open(util.GetEnv("DATABASE_URL"), util.GetEnvString("MIGRATIONS_DIR", migrations.DefaultDir))
	if err != nil {
		logger.Fatal("Failed to open migrations", "err", err)
	}
	defer r.Close()

	switch os.Args[1] {
	case "up":
		err = r.Up()
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				logger.Fatal("Invalid step count", "value", os.Args[2])
			}
		}
		err = r.Down(steps)
	case "version":
		version, dirty, verr := r.Version()
		if verr == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
		err = verr
	case "force":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		version, perr := strconv.Atoi(os.Args[2])
		if perr != nil {
			logger.Fatal("Invalid version", "value", os.Args[2])
		}
		err = r.Force(version)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("Migration failed", "command", os.Args[1], "err", err)
	}
}
