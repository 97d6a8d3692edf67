// Command sql2edgedata aggregates recorded vehicle speeds into a per-edge
// traffic report in SUMO meandata XML format.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gargmohit24/ITSC-2021/internal/config"
	"github.com/gargmohit24/ITSC-2021/internal/database"
	"github.com/gargmohit24/ITSC-2021/internal/geo"
	"github.com/gargmohit24/ITSC-2021/internal/logging"
	"github.com/gargmohit24/ITSC-2021/internal/network"
	"github.com/gargmohit24/ITSC-2021/internal/report"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("sql2edgedata", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: sql2edgedata [flags] <dbpath> <netfile> <outfile>")
		fmt.Fprintln(os.Stderr, "use - as outfile to write to stdout")
		flags.PrintDefaults()
	}

	configDir := flags.String("config-dir", ".", "directory holding the config file")
	flags.Int("run-id", 0, "simulation run to report on")
	startTime := flags.Float64("start-time", 0, "interval begin (seconds, inclusive)")
	endTime := flags.Float64("end-time", 0, "interval end (seconds, exclusive)")
	flags.Float64("lane-tolerance", 0.1, "maximum point-to-lane residual in metres")
	debug := flags.Bool("debug", false, "enable debug logging")
	flags.Parse(os.Args[1:])

	if flags.NArg() != 3 {
		flags.Usage()
		os.Exit(2)
	}
	dbPath, netFile, outFile := flags.Arg(0), flags.Arg(1), flags.Arg(2)

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	viper.BindPFlag("detect.run", flags.Lookup("run-id"))
	viper.BindPFlag("detect.laneTolerance", flags.Lookup("lane-tolerance"))
	viper.Set("db.path", dbPath)
	if *debug {
		viper.Set("logLevel", "debug")
	}

	log, err := logging.Setup("sql2edgedata")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	manager := database.NewManager(log)
	if err := manager.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	st := store.New(manager.DB, log)

	xform := geo.NewTransformer(
		geo.NetPoint{X: viper.GetFloat64("xform.x1"), Y: viper.GetFloat64("xform.y1")},
		geo.NetPoint{X: viper.GetFloat64("xform.x2"), Y: viper.GetFloat64("xform.y2")},
		viper.GetFloat64("xform.margin"),
	)
	net, err := network.LoadFile(netFile, xform)
	if err != nil {
		log.Fatal().Err(err).Str("path", netFile).Msg("Failed to load road network")
	}

	opts := report.Options{
		RunID:         viper.GetInt("detect.run"),
		LaneTolerance: viper.GetFloat64("detect.laneTolerance"),
	}
	if flags.Changed("start-time") {
		opts.StartTime = startTime
	}
	if flags.Changed("end-time") {
		opts.EndTime = endTime
	}

	start := time.Now()
	interval, err := report.Build(st, net, log, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Report generation failed")
	}

	var w io.Writer = os.Stdout
	if outFile != "-" {
		f, err := os.Create(outFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", outFile).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}
	if err := interval.WriteXML(w); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}

	log.Info().
		Int("run", opts.RunID).
		Int("edges", len(interval.Edges)).
		Dur("duration", time.Since(start)).
		Msg("Report complete")
}
