package migrations

import (
	"database/sql"
)

// GetStrictUniquenessMigrations returns migrations that make the database the
// authoritative guard for the parking spot uniqueness rules.
//
// These are optional. With them applied an update that collides with another
// record fails at the storage layer instead of being accepted silently, and
// concurrent creates racing past the existence checks cannot both commit.
// Applying them fails if the table already holds duplicates.
func GetStrictUniquenessMigrations() []Migration {
	return []Migration{
		{
			Version: 10,
			Name:    "add_parking_spot_unique_indices",
			Up: func(tx *sql.Tx) error {
				indices := []string{
					"CREATE UNIQUE INDEX IF NOT EXISTS uq_parking_spots_license_plate ON parking_spots(license_plate_car)",
					"CREATE UNIQUE INDEX IF NOT EXISTS uq_parking_spots_number ON parking_spots(parking_spot_number)",
					"CREATE UNIQUE INDEX IF NOT EXISTS uq_parking_spots_apartment_block ON parking_spots(apartment, block)",
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
					"DROP INDEX IF EXISTS uq_parking_spots_license_plate",
					"DROP INDEX IF EXISTS uq_parking_spots_number",
					"DROP INDEX IF EXISTS uq_parking_spots_apartment_block",
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
