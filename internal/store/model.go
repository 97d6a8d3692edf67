package store

import (
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent
// tables in the database schema.
var DatabaseModels = []interface{}{
	&Run{},
	&Sample{},
	&Collision{},
}

// Run holds per-run metadata captured from the simulation output
// (attr/itervar/param lines), stored as JSON.
type Run struct {
	RunID int            `gorm:"column:run_id;primaryKey;autoIncrement:false"`
	Attrs datatypes.JSON `gorm:"column:attrs"`
}

func (*Run) TableName() string {
	return "runs"
}

// Sample is one telemetry row: the state of one vehicle in one run at one
// sampled instant. Column names match the layout the ingestion tooling has
// always produced, so pre-existing databases keep working. Vector columns
// are pointers because any subset of them may be absent at a given instant.
type Sample struct {
	NodeID  int     `gorm:"column:node_id;primaryKey;autoIncrement:false"`
	RunID   int     `gorm:"column:run_id;primaryKey;autoIncrement:false"`
	Seconds float64 `gorm:"column:seconds;primaryKey"`

	FrameErrorRate *float64 `gorm:"column:frame_error_rate"`
	Controller     string   `gorm:"column:controller"`
	Mpr            *float64 `gorm:"column:mpr"`

	MobilityPosX         *float64 `gorm:"column:mobility_posx"`
	MobilityPosY         *float64 `gorm:"column:mobility_posy"`
	MobilityAcceleration *float64 `gorm:"column:mobility_acceleration"`
	MobilityCo2Emission  *float64 `gorm:"column:mobility_co2emission"`

	ApplPosX                   *float64 `gorm:"column:appl_posx"`
	ApplPosY                   *float64 `gorm:"column:appl_posy"`
	ApplSpeed                  *float64 `gorm:"column:appl_speed"`
	ApplAcceleration           *float64 `gorm:"column:appl_acceleration"`
	ApplLeaderDistance         *float64 `gorm:"column:appl_leaderDistance"`
	ApplRelativeSpeed          *float64 `gorm:"column:appl_relativeSpeed"`
	ApplControllerAcceleration *float64 `gorm:"column:appl_controllerAcceleration"`
	ApplDistanceTravelled      *float64 `gorm:"column:appl_distanceTravelled"`
	ApplLaneIdx                *int     `gorm:"column:appl_laneIdx"`

	ProtNodeID     *int     `gorm:"column:prot_nodeId"`
	ProtBusyTime   *float64 `gorm:"column:prot_busyTime"`
	ProtCollisions *int     `gorm:"column:prot_collisions"`
}

func (*Sample) TableName() string {
	return "results"
}

// Collision is one detected rear-end collision. The composite primary key
// (leader, follower, seconds) makes re-detection a no-op insert.
type Collision struct {
	LeaderNodeID   int     `gorm:"column:leader_node_id;primaryKey;autoIncrement:false"`
	FollowerNodeID int     `gorm:"column:follower_node_id;primaryKey;autoIncrement:false"`
	Seconds        float64 `gorm:"column:seconds;primaryKey"`
	LaneID         string  `gorm:"column:lane_id"`

	// WGS84 geolocation of the follower, present only when the run is
	// configured with the network projection's EPSG code.
	Lon *float64 `gorm:"column:lon"`
	Lat *float64 `gorm:"column:lat"`
}

func (*Collision) TableName() string {
	return "collisions"
}
