package storage

import (
	"database/sql"
	"fmt"
	"time"

	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return dbError("open sqlite "+dsn, err)
	}

	if err := db.Ping(); err != nil {
		return dbError("ping sqlite "+dsn, err)
	}

	// One writer avoids SQLITE_BUSY between the refresh and heatmap archives
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	// Recreate Tables
	return d.recreateTables()
}

// -----------------------------------------------------------------------------

// recreateTables starts every run with an empty archive.
func (d *AsyncSQLiteDB) recreateTables() error {
	tables := []struct{ name, ddl string }{
		{"bars", `
			CREATE TABLE bars (
				symbol TEXT,
				timeframe TEXT,
				timestamp INTEGER,
				open REAL,
				high REAL,
				low REAL,
				close REAL,
				volume REAL,
				PRIMARY KEY (symbol, timeframe, timestamp)
			);`},
		{"heatmaps", `
			CREATE TABLE heatmaps (
				symbol TEXT,
				period TEXT,
				timeframe TEXT,
				payload TEXT,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (symbol, period)
			);`},
		{"markets", `
			CREATE TABLE markets (
				symbol TEXT PRIMARY KEY,
				market_id TEXT,
				base TEXT,
				quote TEXT,
				active INTEGER,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`},
	}

	for _, t := range tables {
		if _, err := d.DB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", t.name)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", t.name, err)
		}
		if _, err := d.DB.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveBars(symbol, timeframe string, bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO bars (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
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

func (d *AsyncSQLiteDB) SaveHeatmap(matrix models.MHeatmapMatrix) error {
	payload, err := encodeHeatmap(matrix)
	if err != nil {
		return err
	}

	_, err = d.DB.Exec(`
		INSERT INTO heatmaps (symbol, period, timeframe, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (symbol, period) DO UPDATE SET
			timeframe = excluded.timeframe,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, matrix.Symbol, string(matrix.Period), matrix.Timeframe, string(payload), time.Now().UTC())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveMarkets(markets []models.MMarket) error {
	if len(markets) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO markets (symbol, market_id, base, quote, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			market_id = excluded.market_id,
			base = excluded.base,
			quote = excluded.quote,
			active = excluded.active,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range markets {
		if _, err := stmt.Exec(m.Symbol, m.ID, m.Base, m.Quote, m.Active, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
