// Command sql2collisions scans a recorded simulation trace for probable
// rear-end collisions and persists them to the trace database.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gargmohit24/ITSC-2021/internal/config"
	"github.com/gargmohit24/ITSC-2021/internal/database"
	"github.com/gargmohit24/ITSC-2021/internal/detector"
	"github.com/gargmohit24/ITSC-2021/internal/geo"
	"github.com/gargmohit24/ITSC-2021/internal/influx"
	"github.com/gargmohit24/ITSC-2021/internal/logging"
	"github.com/gargmohit24/ITSC-2021/internal/network"
	"github.com/gargmohit24/ITSC-2021/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("sql2collisions", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: sql2collisions [flags] <dbpath> <netfile>")
		flags.PrintDefaults()
	}

	configDir := flags.String("config-dir", ".", "directory holding the config file")
	flags.Int("run-id", 0, "simulation run to process")
	startTime := flags.Float64("start-time", 0, "first instant to process (seconds)")
	endTime := flags.Float64("end-time", 0, "last instant to process (seconds)")
	flags.Float64("ttc", 1.0, "time-to-collision threshold in seconds")
	allSnapshots := flags.Bool("all-snapshots", false, "process sub-second instants too")
	flags.Float64("lane-tolerance", 0.1, "maximum point-to-lane residual in metres")
	flags.Int("epsg", 0, "EPSG code of the network projection, 0 disables geolocation")
	debug := flags.Bool("debug", false, "enable debug logging")
	flags.Parse(os.Args[1:])

	if flags.NArg() != 2 {
		flags.Usage()
		os.Exit(2)
	}
	dbPath, netFile := flags.Arg(0), flags.Arg(1)

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	viper.BindPFlag("detect.run", flags.Lookup("run-id"))
	viper.BindPFlag("detect.ttc", flags.Lookup("ttc"))
	viper.BindPFlag("detect.laneTolerance", flags.Lookup("lane-tolerance"))
	viper.BindPFlag("geo.epsg", flags.Lookup("epsg"))
	viper.Set("db.path", dbPath)
	if *debug {
		viper.Set("logLevel", "debug")
	}

	log, err := logging.Setup("sql2collisions")
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

	xform := geo.NewTransformer(
		geo.NetPoint{X: viper.GetFloat64("xform.x1"), Y: viper.GetFloat64("xform.y1")},
		geo.NetPoint{X: viper.GetFloat64("xform.x2"), Y: viper.GetFloat64("xform.y2")},
		viper.GetFloat64("xform.margin"),
	)
	net, err := network.LoadFile(netFile, xform)
	if err != nil {
		log.Fatal().Err(err).Str("path", netFile).Msg("Failed to load road network")
	}
	log.Info().Int("lanes", len(net.Lanes())).Str("path", netFile).Msg("Road network loaded")

	metrics := influx.NewManager(log)
	if err := metrics.Connect(); err != nil {
		log.Warn().Err(err).Msg("InfluxDB connection failed")
	}
	defer metrics.Close()

	runID := viper.GetInt("detect.run")
	opts := detector.Options{
		RunID:            runID,
		TTC:              viper.GetFloat64("detect.ttc"),
		WholeSecondsOnly: !*allSnapshots,
		LaneTolerance:    viper.GetFloat64("detect.laneTolerance"),
		GeoEPSG:          viper.GetInt("geo.epsg"),
		OnSnapshot: func(s detector.SnapshotStats) {
			metrics.WriteSnapshot(runID, s.Start, s.End, s.Vehicles, s.Candidates, s.Collisions, s.Duration)
		},
	}
	if flags.Changed("start-time") {
		opts.StartTime = startTime
	}
	if flags.Changed("end-time") {
		opts.EndTime = endTime
	}

	runStart := time.Now()
	summary, err := detector.New(st, net, log, opts).Run()
	if err != nil {
		log.Fatal().Err(err).Msg("Detection run failed")
	}
	metrics.WriteRunSummary(runID, summary.Snapshots, summary.Collisions, time.Since(runStart))

	log.Info().
		Int("run", runID).
		Int("instants", summary.Instants).
		Int("snapshots", summary.Snapshots).
		Int64("collisions", summary.Collisions).
		Dur("duration", time.Since(runStart)).
		Msg("Detection complete")
}
