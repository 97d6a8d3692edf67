// Package ingest loads OMNeT++ vector (.vec) output files into the tabular
// telemetry store.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gargmohit24/ITSC-2021/internal/queue"
	"github.com/gargmohit24/ITSC-2021/internal/store"
	"github.com/gargmohit24/ITSC-2021/internal/util"
)

// flushBatch is how many merged rows go to the store per upsert.
const flushBatch = 2000

// Run attributes the results schema promotes to dedicated columns.
const (
	runVarFrameErrorRate = "*.**.nic.mac1609_4.frameErrorRate"
	runVarController     = "*.node[*].scenario.controller"
	runVarMpr            = "**.mpr"
)

var (
	reRunID  = regexp.MustCompile(`^[^-]+-([0-9]+)`)
	reNodeID = regexp.MustCompile(`\[([0-9]+)\]`)
)

// vectorInfo describes one declared vector: which vehicle it belongs to and
// which results column its values land in.
type vectorInfo struct {
	nodeID int
	column string
}

// Result summarizes one ingested file.
type Result struct {
	RunID   int
	Lines   int
	Values  int
	Samples int
	Pruned  int64
}

// Ingester parses vector files and merges their values into per-instant
// telemetry rows.
type Ingester struct {
	store *store.Store
	log   zerolog.Logger
}

// New creates an Ingester writing to st.
func New(st *store.Store, log zerolog.Logger) *Ingester {
	return &Ingester{store: st, log: log}
}

// File ingests a single .vec file.
func (in *Ingester) File(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vector file: %w", err)
	}
	defer f.Close()

	res, err := in.Ingest(f)
	if err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", path, err)
	}
	return res, nil
}

// Ingest parses an OMNeT++ vector (version 2) stream. Vector values are
// merged by (node, run, seconds); only the known telemetry columns are
// stored, everything else is skipped. The merged rows are upserted in
// batches, so re-ingesting a file is safe.
func (in *Ingester) Ingest(r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	// version check
	if !sc.Scan() {
		return nil, fmt.Errorf("empty vector file")
	}
	version, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "version ")
	if !ok {
		return nil, fmt.Errorf("expected version line, got %q", sc.Text())
	}
	if version != "2" {
		return nil, fmt.Errorf("unexpected vector file version %s", version)
	}

	// run identifier
	if !sc.Scan() {
		return nil, fmt.Errorf("missing run identifier")
	}
	runLine, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "run ")
	if !ok {
		return nil, fmt.Errorf("expected run identifier, got %q", sc.Text())
	}
	m := reRunID.FindStringSubmatch(runLine)
	if m == nil {
		return nil, fmt.Errorf("cannot extract run number from %q", runLine)
	}
	runID, _ := strconv.Atoi(m[1])

	res := &Result{RunID: runID, Lines: 2}

	runVars := make(map[string]string)
	vectors := make(map[int]vectorInfo)

	type sampleKey struct {
		nodeID  int
		seconds float64
	}
	samples := make(map[sampleKey]*store.Sample)

	for sc.Scan() {
		res.Lines++
		line := strings.TrimSpace(strings.ReplaceAll(sc.Text(), "\t", " "))
		if line == "" {
			continue
		}

		start, rest, _ := strings.Cut(line, " ")
		switch start {
		case "version", "run":
			continue

		case "attr", "itervar", "param":
			name, value, _ := strings.Cut(rest, " ")
			runVars[name] = util.TrimQuotes(util.StripEscapedQuotes(value))

		case "vector":
			info, id, err := parseVectorDecl(rest)
			if err != nil {
				return nil, err
			}
			vectors[id] = info

		default:
			vectorID, err := strconv.Atoi(start)
			if err != nil {
				// neither a known directive nor a data line
				continue
			}
			info, ok := vectors[vectorID]
			if !ok {
				return nil, fmt.Errorf("data line for undeclared vector %d", vectorID)
			}
			seconds, value, err := parseDataLine(rest)
			if err != nil {
				return nil, err
			}

			key := sampleKey{nodeID: info.nodeID, seconds: seconds}
			row, ok := samples[key]
			if !ok {
				row = &store.Sample{
					NodeID:     info.nodeID,
					RunID:      runID,
					Seconds:    seconds,
					Controller: runVars[runVarController],
				}
				if v, err := strconv.ParseFloat(runVars[runVarFrameErrorRate], 64); err == nil {
					row.FrameErrorRate = &v
				}
				if v, err := strconv.ParseFloat(runVars[runVarMpr], 64); err == nil {
					row.Mpr = &v
				}
				samples[key] = row
			}
			if applyColumn(row, info.column, value) {
				res.Values++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading vector file: %w", err)
	}

	// Persist run metadata.
	attrs, err := json.Marshal(runVars)
	if err != nil {
		return nil, fmt.Errorf("encoding run attributes: %w", err)
	}
	if err := in.store.SaveRun(&store.Run{RunID: runID, Attrs: attrs}); err != nil {
		return nil, err
	}

	// Flush merged rows in batches.
	buf := queue.New[store.Sample]()
	for _, row := range samples {
		buf.Push(*row)
		if buf.Len() >= flushBatch {
			if err := in.flush(buf); err != nil {
				return nil, err
			}
		}
	}
	if err := in.flush(buf); err != nil {
		return nil, err
	}
	res.Samples = len(samples)

	// Rows without appl_distanceTravelled got only a subset of their
	// instant's vectors; drop them so partial instants cannot surface in
	// the instant listing.
	pruned, err := in.store.PruneIncomplete(runID)
	if err != nil {
		return nil, err
	}
	res.Pruned = pruned

	in.log.Info().
		Int("run", runID).
		Int("lines", res.Lines).
		Int("values", res.Values).
		Int("samples", res.Samples).
		Int64("pruned", res.Pruned).
		Msg("Ingested vector file")
	return res, nil
}

func (in *Ingester) flush(buf *queue.Queue[store.Sample]) error {
	rows := buf.Drain()
	if len(rows) == 0 {
		return nil
	}
	return in.store.UpsertSamples(rows)
}

// parseVectorDecl parses "vecid module name ETV" into a vectorInfo.
func parseVectorDecl(rest string) (vectorInfo, int, error) {
	fields := strings.SplitN(rest, " ", 4)
	if len(fields) < 4 {
		return vectorInfo{}, 0, fmt.Errorf("malformed vector declaration %q", rest)
	}
	if strings.TrimSpace(fields[3]) != "ETV" {
		return vectorInfo{}, 0, fmt.Errorf("expected ETV but got %s", fields[3])
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return vectorInfo{}, 0, fmt.Errorf("bad vector id %q", fields[0])
	}

	src, name := fields[1], fields[2]
	m := reNodeID.FindStringSubmatch(src)
	if m == nil {
		return vectorInfo{}, 0, fmt.Errorf("cannot extract node id from %q", src)
	}
	nodeID, _ := strconv.Atoi(m[1])

	// Column name is the last module path segment joined with the vector
	// name, e.g. "mobility_posx".
	lastSeg := src
	if i := strings.LastIndex(src, "."); i >= 0 {
		lastSeg = src[i+1:]
	}
	return vectorInfo{nodeID: nodeID, column: lastSeg + "_" + name}, id, nil
}

// parseDataLine parses "eventno time value" from a vector data line.
func parseDataLine(rest string) (seconds, value float64, err error) {
	fields := strings.SplitN(rest, " ", 3)
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("malformed data line %q", rest)
	}
	seconds, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad time %q", fields[1])
	}
	value, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad value %q", fields[2])
	}
	return seconds, value, nil
}

// applyColumn maps a declared vector column onto its Sample field.
// Unknown columns are ignored.
func applyColumn(row *store.Sample, column string, value float64) bool {
	switch column {
	case "mobility_posx":
		row.MobilityPosX = &value
	case "mobility_posy":
		row.MobilityPosY = &value
	case "mobility_acceleration":
		row.MobilityAcceleration = &value
	case "mobility_co2emission":
		row.MobilityCo2Emission = &value
	case "appl_posx":
		row.ApplPosX = &value
	case "appl_posy":
		row.ApplPosY = &value
	case "appl_speed":
		row.ApplSpeed = &value
	case "appl_acceleration":
		row.ApplAcceleration = &value
	case "appl_leaderDistance":
		row.ApplLeaderDistance = &value
	case "appl_relativeSpeed":
		row.ApplRelativeSpeed = &value
	case "appl_controllerAcceleration":
		row.ApplControllerAcceleration = &value
	case "appl_distanceTravelled":
		row.ApplDistanceTravelled = &value
	case "appl_laneIdx":
		idx := int(value)
		row.ApplLaneIdx = &idx
	case "prot_nodeId":
		id := int(value)
		row.ProtNodeID = &id
	case "prot_busyTime":
		row.ProtBusyTime = &value
	case "prot_collisions":
		n := int(value)
		row.ProtCollisions = &n
	default:
		return false
	}
	return true
}
