// Package influx ships per-snapshot processing stats to InfluxDB.
package influx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect establishes a connection to InfluxDB. When influx.enabled is
// false or the server is unreachable, the manager stays invalid and all
// writes become no-ops; metrics are best-effort and never fail a run.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return nil
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.Logger.Warn().Err(err).Msg("InfluxDB unreachable, stats disabled")
		return nil
	}

	m.Writer = m.Client.WriteAPI(
		viper.GetString("influx.org"),
		viper.GetString("influx.bucket"),
	)
	m.IsValid = true
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

// WriteSnapshot records the processing stats of one snapshot window.
func (m *Manager) WriteSnapshot(runID int, start, end float64, vehicles, candidates, collisions int, duration time.Duration) {
	if !m.IsValid {
		return
	}
	p := influxdb2.NewPoint(
		"snapshot",
		map[string]string{"run": strconv.Itoa(runID)},
		map[string]interface{}{
			"start":       start,
			"end":         end,
			"vehicles":    vehicles,
			"candidates":  candidates,
			"collisions":  collisions,
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
		},
		time.Now(),
	)
	m.Writer.WritePoint(p)
}

// WriteRunSummary records the outcome of a full detection run.
func (m *Manager) WriteRunSummary(runID, snapshots int, collisions int64, duration time.Duration) {
	if !m.IsValid {
		return
	}
	p := influxdb2.NewPoint(
		"detection_run",
		map[string]string{"run": strconv.Itoa(runID)},
		map[string]interface{}{
			"snapshots":   snapshots,
			"collisions":  collisions,
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
		},
		time.Now(),
	)
	m.Writer.WritePoint(p)
}

// Close flushes buffered points and shuts the client down.
func (m *Manager) Close() {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
}
