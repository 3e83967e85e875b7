package storage

import "market-pipeline/src/models"

// NoopStore discards everything. Used when db_type is none.
type NoopStore struct{}

func (NoopStore) Initialize() error { return nil }

func (NoopStore) SaveBars(string, string, []models.MBar) error { return nil }

func (NoopStore) SaveHeatmap(models.MHeatmapMatrix) error { return nil }

func (NoopStore) SaveMarkets([]models.MMarket) error { return nil }

func (NoopStore) Close() error { return nil }
