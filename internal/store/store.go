// Package store provides access to the tabular telemetry store and the
// collision output table.
package store

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// presentPosition restricts sample queries to rows usable for snapshot
// construction: null position or speed means the vehicle was not fully
// observed at that instant.
const presentPosition = "mobility_posx IS NOT NULL AND mobility_posy IS NOT NULL AND appl_speed IS NOT NULL"

// Store wraps the database handle with the queries the pipeline needs.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a Store over an open database handle.
func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for migration and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the schema for all models.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SamplesAt returns all fully-observed samples for the run at one instant.
func (s *Store) SamplesAt(runID int, seconds float64) ([]Sample, error) {
	var rows []Sample
	err := s.db.
		Where("run_id = ? AND seconds = ?", runID, seconds).
		Where(presentPosition).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching samples at %f: %w", seconds, err)
	}
	return rows, nil
}

// Instants returns the distinct sampled instants for the run within
// [start, end], ascending.
func (s *Store) Instants(runID int, start, end float64) ([]float64, error) {
	var instants []float64
	err := s.db.Model(&Sample{}).
		Distinct("seconds").
		Where("run_id = ? AND seconds >= ? AND seconds <= ?", runID, start, end).
		Order("seconds asc").
		Pluck("seconds", &instants).Error
	if err != nil {
		return nil, fmt.Errorf("listing instants: %w", err)
	}
	return instants, nil
}

// TimeBounds returns the earliest and latest sampled instants for the run.
func (s *Store) TimeBounds(runID int) (min, max float64, err error) {
	type bounds struct {
		Min *float64
		Max *float64
	}
	var b bounds
	err = s.db.Model(&Sample{}).
		Select("MIN(seconds) AS min, MAX(seconds) AS max").
		Where("run_id = ?", runID).
		Scan(&b).Error
	if err != nil {
		return 0, 0, fmt.Errorf("fetching time bounds: %w", err)
	}
	if b.Min == nil || b.Max == nil {
		return 0, 0, fmt.Errorf("no samples for run %d", runID)
	}
	return *b.Min, *b.Max, nil
}

// InsertCollisions appends collision records, ignoring rows whose
// (leader, follower, seconds) key already exists. Returns the number of
// rows actually inserted; duplicates are silent no-ops, so re-running
// detection over the same input never changes the stored set.
func (s *Store) InsertCollisions(cs []Collision) (int64, error) {
	if len(cs) == 0 {
		return 0, nil
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cs)
	if res.Error != nil {
		return 0, fmt.Errorf("inserting collisions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Collisions returns all stored collisions for inspection, ordered by time
// then follower.
func (s *Store) Collisions() ([]Collision, error) {
	var cs []Collision
	err := s.db.
		Order("seconds asc, follower_node_id asc, leader_node_id asc").
		Find(&cs).Error
	if err != nil {
		return nil, fmt.Errorf("fetching collisions: %w", err)
	}
	return cs, nil
}

// UpsertSamples merges a batch of samples into the results table. Rows with
// an existing (node, run, seconds) key have their columns updated, matching
// the ingestion model where vector values for one instant arrive spread
// over many input lines.
func (s *Store) UpsertSamples(rows []Sample) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&rows, 2000).Error
	if err != nil {
		return fmt.Errorf("upserting samples: %w", err)
	}
	return nil
}

// PruneIncomplete deletes the run's partially-observed rows. A row that
// never received appl_distanceTravelled carries only a subset of the
// vectors for its instant; left in place, such instants would surface in
// Instants and split detection windows. Returns the number of rows removed.
func (s *Store) PruneIncomplete(runID int) (int64, error) {
	res := s.db.
		Where("run_id = ? AND appl_distanceTravelled IS NULL", runID).
		Delete(&Sample{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning incomplete samples: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SaveRun stores or replaces run metadata.
func (s *Store) SaveRun(run *Run) error {
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(run).Error
	if err != nil {
		return fmt.Errorf("saving run %d: %w", run.RunID, err)
	}
	return nil
}

// SpeedSample is the projection used by the edge report.
type SpeedSample struct {
	NodeID  int
	Seconds float64
	PosX    float64
	PosY    float64
	Speed   float64
}

// SpeedSamples returns fully-observed samples for the run in [start, end),
// ordered by time. The half-open interval matches the aggregate report's
// windowing.
func (s *Store) SpeedSamples(runID int, start, end float64) ([]SpeedSample, error) {
	var rows []SpeedSample
	err := s.db.Model(&Sample{}).
		Select("node_id, seconds, mobility_posx AS pos_x, mobility_posy AS pos_y, appl_speed AS speed").
		Where("run_id = ? AND seconds >= ? AND seconds < ?", runID, start, end).
		Where(presentPosition).
		Order("seconds asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching speed samples: %w", err)
	}
	return rows, nil
}
