package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	Run      RunMetadata     `json:"run"`
	Stations []StationRecord `json:"stations"`
}

// WriteJSON encodes a run and its stations to w.
func WriteJSON(w io.Writer, meta RunMetadata, records []StationRecord) error {
	data := ExportData{Run: meta, Stations: records}
	if data.Stations == nil {
		data.Stations = []StationRecord{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, meta RunMetadata, records []StationRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, meta, records)
}

// Export writes a stored run to path as JSON.
func (s *Store) Export(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	records, err := s.LoadStations(runID)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, *meta, records)
	}
	return ExportJSON(path, *meta, records)
}
