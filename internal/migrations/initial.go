package migrations

import (
	"database/sql"
)

// GetInitialMigrations returns all initial migrations
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_parking_spots_table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS parking_spots (
						id TEXT PRIMARY KEY,
						parking_spot_number TEXT NOT NULL,
						license_plate_car TEXT NOT NULL,
						model_car TEXT NOT NULL,
						brand_car TEXT NOT NULL,
						color_car TEXT NOT NULL,
						registration_date TEXT NOT NULL,
						responsible_name TEXT NOT NULL,
						apartment TEXT NOT NULL,
						block TEXT NOT NULL
					)
				`)
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec(`DROP TABLE IF EXISTS parking_spots`)
				return err
			},
		},
		{
			Version: 2,
			Name:    "add_parking_spot_lookup_indices",
			Up: func(tx *sql.Tx) error {
				// Plain indices: uniqueness is checked by the handler before insert.
				indices := []string{
					"CREATE INDEX IF NOT EXISTS idx_parking_spots_license_plate ON parking_spots(license_plate_car)",
					"CREATE INDEX IF NOT EXISTS idx_parking_spots_number ON parking_spots(parking_spot_number)",
					"CREATE INDEX IF NOT EXISTS idx_parking_spots_apartment_block ON parking_spots(apartment, block)",
				}
				for _, indexSQL := range indices {
					if _, err := tx.Exec(indexSQL); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				indices := []string{
					"DROP INDEX IF EXISTS idx_parking_spots_license_plate",
					"DROP INDEX IF EXISTS idx_parking_spots_number",
					"DROP INDEX IF EXISTS idx_parking_spots_apartment_block",
				}
				for _, dropSQL := range indices {
					if _, err := tx.Exec(dropSQL); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
