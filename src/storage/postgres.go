package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// The executable name becomes the schema
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return dbError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		return dbError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.recreateTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) recreateTables() error {
	tables := []struct{ name, columns string }{
		{"bars", `
			symbol TEXT,
			timeframe TEXT,
			timestamp BIGINT,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			PRIMARY KEY (symbol, timeframe, timestamp)`},
		{"heatmaps", `
			symbol TEXT,
			period TEXT,
			timeframe TEXT,
			payload JSONB,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (symbol, period)`},
		{"markets", `
			symbol TEXT PRIMARY KEY,
			market_id TEXT,
			base TEXT,
			quote TEXT,
			active BOOLEAN,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP`},
	}

	for _, t := range tables {
		name := d.table(t.name)
		if _, err := d.DB.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, name)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", name, err)
		}
		if _, err := d.DB.Exec(fmt.Sprintf(`CREATE TABLE %s (%s);`, name, t.columns)); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveBars(symbol, timeframe string, bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`, d.table("bars"))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, timeframe, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveHeatmap(matrix models.MHeatmapMatrix) error {
	payload, err := encodeHeatmap(matrix)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, period, timeframe, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, period) DO UPDATE SET
			timeframe = EXCLUDED.timeframe,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, d.table("heatmaps"))
	_, err = d.DB.Exec(query, matrix.Symbol, string(matrix.Period), matrix.Timeframe, string(payload), time.Now().UTC())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
