package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/track"
)

// MaxParticleRows caps particles.csv.
const MaxParticleRows = 5000

const (
	metadataFile  = "metadata.json"
	stationsFile  = "stations.csv"
	particlesFile = "particles.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Timestamp    time.Time          `json:"timestamp"`
	BeamKind     string             `json:"beam_kind"`
	NumParticles int                `json:"num_particles,omitempty"`
	Seed         uint64             `json:"seed"`
	Batch        []int              `json:"batch"`
	Elements     int                `json:"elements"`
	Metrics      map[string]float64 `json:"metrics"`
}

// StationRecord is one row of stations.csv: the transverse moments of one
// batch entry after one element.
type StationRecord struct {
	Element string  `json:"element"`
	Kind    string  `json:"kind"`
	S       float64 `json:"s"`
	Batch   int     `json:"batch"`
	MuX     float64 `json:"mu_x"`
	MuXP    float64 `json:"mu_xp"`
	MuY     float64 `json:"mu_y"`
	MuYP    float64 `json:"mu_yp"`
	SigmaX  float64 `json:"sigma_x"`
	SigmaXP float64 `json:"sigma_xp"`
	SigmaY  float64 `json:"sigma_y"`
	SigmaYP float64 `json:"sigma_yp"`
}

var stationHeader = []string{
	"element", "kind", "s", "batch",
	"mu_x", "mu_xp", "mu_y", "mu_yp",
	"sigma_x", "sigma_xp", "sigma_y", "sigma_yp",
}

func (r StationRecord) values() []float64 {
	return []float64{r.MuX, r.MuXP, r.MuY, r.MuYP, r.SigmaX, r.SigmaXP, r.SigmaY, r.SigmaYP}
}

// Records flattens the stations of a tracking result, one record per
// station and batch entry.
func Records(result *track.Result) []StationRecord {
	out := make([]StationRecord, 0, len(result.Stations))
	for _, st := range result.Stations {
		sum := st.Summary
		for i := 0; i < sum.Len(); i++ {
			out = append(out, StationRecord{
				Element: st.Element,
				Kind:    st.Kind,
				S:       st.S,
				Batch:   i,
				MuX:     sum.Mu[beam.X][i],
				MuXP:    sum.Mu[beam.XP][i],
				MuY:     sum.Mu[beam.Y][i],
				MuYP:    sum.Mu[beam.YP][i],
				SigmaX:  sum.Sigma[beam.X][i],
				SigmaXP: sum.Sigma[beam.XP][i],
				SigmaY:  sum.Sigma[beam.Y][i],
				SigmaYP: sum.Sigma[beam.YP][i],
			})
		}
	}
	return out
}

// Save writes a run directory and returns its ID. ID and Timestamp of meta
// are filled in; metrics default to the result's.
func (s *Store) Save(meta RunMetadata, result *track.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("storage: nil result")
	}
	name := meta.Name
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%s", name, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Name = name
	meta.Timestamp = time.Now()
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}
	if meta.Elements == 0 && len(result.Stations) > 0 {
		meta.Elements = len(result.Stations) - 1
	}
	if result.Beam != nil && meta.Batch == nil {
		meta.Batch = result.Beam.BatchShape()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeStations(filepath.Join(runDir, stationsFile), Records(result)); err != nil {
		return "", err
	}
	if pb, ok := result.Beam.(*beam.ParticleBeam); ok {
		if err := writeParticles(filepath.Join(runDir, particlesFile), pb); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func writeStations(path string, records []StationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(stationHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.Element, r.Kind, formatFloat(r.S), strconv.Itoa(r.Batch)}
		for _, v := range r.values() {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeParticles stores the coordinates of batch entry 0.
func writeParticles(path string, b *beam.ParticleBeam) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, 0, beam.Dim)
	for _, c := range beam.Coordinates() {
		header = append(header, c.String())
	}
	if err := w.Write(header); err != nil {
		return err
	}

	data := b.Particles().Raw()
	n := min(b.NumParticles(), MaxParticleRows)
	for i := 0; i < n; i++ {
		row := make([]string, beam.Dim)
		for j := range row {
			row[j] = formatFloat(data[i*beam.Dim+j])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the metadata of every run, newest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: run %s: %w", runID, err)
	}
	return &meta, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	return records[1:], nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Store) LoadStations(runID string) ([]StationRecord, error) {
	rows, err := readCSV(filepath.Join(s.baseDir, runID, stationsFile))
	if err != nil {
		return nil, err
	}

	out := make([]StationRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(stationHeader) {
			return nil, fmt.Errorf("storage: %s row %d has %d fields", stationsFile, i+1, len(row))
		}
		batch, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("storage: %s row %d: %w", stationsFile, i+1, err)
		}
		v, err := parseFloats(append([]string{row[2]}, row[4:]...))
		if err != nil {
			return nil, fmt.Errorf("storage: %s row %d: %w", stationsFile, i+1, err)
		}
		out = append(out, StationRecord{
			Element: row[0],
			Kind:    row[1],
			S:       v[0],
			Batch:   batch,
			MuX:     v[1],
			MuXP:    v[2],
			MuY:     v[3],
			MuYP:    v[4],
			SigmaX:  v[5],
			SigmaXP: v[6],
			SigmaY:  v[7],
			SigmaYP: v[8],
		})
	}
	return out, nil
}

// LoadParticles reads particles.csv as rows of six coordinates. Runs of
// summary beams have no particle file and return an empty slice.
func (s *Store) LoadParticles(runID string) ([][]float64, error) {
	rows, err := readCSV(filepath.Join(s.baseDir, runID, particlesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return [][]float64{}, nil
		}
		return nil, err
	}

	out := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) != beam.Dim {
			return nil, fmt.Errorf("storage: %s row %d has %d fields", particlesFile, i+1, len(row))
		}
		v, err := parseFloats(row)
		if err != nil {
			return nil, fmt.Errorf("storage: %s row %d: %w", particlesFile, i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
