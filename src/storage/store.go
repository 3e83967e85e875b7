package storage

import (
	"fmt"

	"market-pipeline/src/helpers"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	json "github.com/goccy/go-json"
)

// -----------------------------------------------------------------------------

// NewSnapshotStore picks the archive backend from storage.db_type.
func NewSnapshotStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ISnapshotStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		return NewPostgresDB(cfg, log.Named("PostgresDB"))
	case "sqlite":
		return NewAsyncSQLiteDB(cfg, log.Named("SQLiteDB"))
	case "", "none":
		return NoopStore{}, nil
	default:
		return nil, &helpers.ConfigurationError{PipelineError: helpers.PipelineError{
			Message: fmt.Sprintf("unknown db_type %q", cfg.Storage.DBType),
		}}
	}
}

// -----------------------------------------------------------------------------

// heatmapDocument is the archived form of a matrix.
type heatmapDocument struct {
	Days       []string    `json:"days"`
	TimeLabels []string    `json:"time_labels"`
	Volumes    [][]float64 `json:"volumes"`
}

func encodeHeatmap(m models.MHeatmapMatrix) ([]byte, error) {
	return json.Marshal(heatmapDocument{Days: m.Days, TimeLabels: m.TimeLabels, Volumes: m.Volumes})
}

func dbError(op string, err error) error {
	return &helpers.DatabaseError{PipelineError: helpers.PipelineError{Message: op, Cause: err}}
}
