package storage

import (
	"time"

	"market-pipeline/src/models"
)

// Market registration lives apart from the series tables

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveMarkets(markets []models.MMarket) error {
	if len(markets) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO ` + d.table("markets") + ` (symbol, market_id, base, quote, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			market_id = EXCLUDED.market_id,
			base = EXCLUDED.base,
			quote = EXCLUDED.quote,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	stmt, err := tx.Prepare(query)
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
