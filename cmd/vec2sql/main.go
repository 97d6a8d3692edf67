// Command vec2sql ingests an OMNeT++ vector file into the trace database,
// merging per-vector values into one telemetry row per vehicle and instant.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gargmohit24/ITSC-2021/internal/config"
	"github.com/gargmohit24/ITSC-2021/internal/database"
	"github.com/gargmohit24/ITSC-2021/internal/ingest"
	"github.com/gargmohit24/ITSC-2021/internal/logging"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("vec2sql", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: vec2sql [flags] <vecfile> <dbpath>")
		flags.PrintDefaults()
	}

	configDir := flags.String("config-dir", ".", "directory holding the config file")
	debug := flags.Bool("debug", false, "enable debug logging")
	flags.Parse(os.Args[1:])

	if flags.NArg() != 2 {
		flags.Usage()
		os.Exit(2)
	}
	vecFile, dbPath := flags.Arg(0), flags.Arg(1)

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	viper.Set("db.path", dbPath)
	if *debug {
		viper.Set("logLevel", "debug")
	}

	log, err := logging.Setup("vec2sql")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	manager := database.NewManager(log)
	if err := manager.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := manager.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}
	st := store.New(manager.DB, log)

	start := time.Now()
	result, err := ingest.New(st, log).File(vecFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", vecFile).Msg("Ingestion failed")
	}

	log.Info().
		Int("run", result.RunID).
		Int("lines", result.Lines).
		Int("values", result.Values).
		Int("samples", result.Samples).
		Int64("pruned", result.Pruned).
		Dur("duration", time.Since(start)).
		Msg("Ingestion complete")
}
