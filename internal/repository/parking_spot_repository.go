package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jbweber/homelab/parkingcontrol/internal/datastore"
	"github.com/jbweber/homelab/parkingcontrol/internal/domain"
)

// ParkingSpotRepository extends the generic Repository with parking spot lookups
type ParkingSpotRepository interface {
	Repository[domain.ParkingSpot, uuid.UUID]

	// Uniqueness predicates scanning all current records
	ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error)
	ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error)
	ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error)

	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ParkingSpotRepository) error) error
}

const (
	spotColumns = "id, parking_spot_number, license_plate_car, model_car, brand_car, color_car, registration_date, responsible_name, apartment, block"

	insertSpotSQL = "INSERT INTO parking_spots (" + spotColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	updateSpotSQL = `UPDATE parking_spots SET parking_spot_number = ?, license_plate_car = ?, model_car = ?,
		brand_car = ?, color_car = ?, responsible_name = ?, apartment = ?, block = ? WHERE id = ?`
	selectSpotSQL     = "SELECT " + spotColumns + " FROM parking_spots WHERE id = ?"
	selectAllSpotsSQL = "SELECT " + spotColumns + " FROM parking_spots ORDER BY rowid ASC"
	deleteSpotSQL     = "DELETE FROM parking_spots WHERE id = ?"

	existsByIDSQL                = "SELECT EXISTS(SELECT 1 FROM parking_spots WHERE id = ?)"
	existsByLicensePlateCarSQL   = "SELECT EXISTS(SELECT 1 FROM parking_spots WHERE license_plate_car = ?)"
	existsByParkingSpotNumberSQL = "SELECT EXISTS(SELECT 1 FROM parking_spots WHERE parking_spot_number = ?)"
	existsByApartmentAndBlockSQL = "SELECT EXISTS(SELECT 1 FROM parking_spots WHERE apartment = ? AND block = ?)"
)

// registrationDateLayout is the on-disk format of registration_date
const registrationDateLayout = time.RFC3339Nano

// parkingSpotRepositoryImpl implements ParkingSpotRepository
type parkingSpotRepositoryImpl struct {
	*DatastoreRepository
}

// NewParkingSpotRepository creates a new parking spot repository
func NewParkingSpotRepository(ds *datastore.Datastore) ParkingSpotRepository {
	return &parkingSpotRepositoryImpl{
		DatastoreRepository: NewDatastoreRepository(ds),
	}
}

// WithinTx runs fn inside a transaction
func (r *parkingSpotRepositoryImpl) WithinTx(ctx context.Context, fn func(ParkingSpotRepository) error) error {
	return r.withinTx(ctx, func(base *DatastoreRepository) error {
		return fn(&parkingSpotRepositoryImpl{DatastoreRepository: base})
	})
}

// Save inserts a new parking spot when its ID is unset, otherwise overwrites the
// stored row. The registration date is never rewritten by an update.
func (r *parkingSpotRepositoryImpl) Save(ctx context.Context, spot domain.ParkingSpot) (domain.ParkingSpot, error) {
	if spot.IsNew() {
		return r.insert(ctx, spot)
	}
	return r.update(ctx, spot)
}

func (r *parkingSpotRepositoryImpl) insert(ctx context.Context, spot domain.ParkingSpot) (domain.ParkingSpot, error) {
	if spot.RegistrationDate.IsZero() {
		return domain.ParkingSpot{}, fmt.Errorf("parking spot registration date is required: %w", ErrInvalidEntity)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("failed to generate parking spot ID: %w", err)
	}
	spot.ID = id
	// Round(0) drops the monotonic reading so the returned value matches what is read back.
	spot.RegistrationDate = spot.RegistrationDate.UTC().Round(0)

	_, err = r.exec(ctx, insertSpotSQL,
		spot.ID.String(),
		spot.ParkingSpotNumber,
		spot.LicensePlateCar,
		spot.ModelCar,
		spot.BrandCar,
		spot.ColorCar,
		spot.RegistrationDate.Format(registrationDateLayout),
		spot.ResponsibleName,
		spot.Apartment,
		spot.Block,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ParkingSpot{}, fmt.Errorf("parking spot %s: %w", spot.ParkingSpotNumber, ErrDuplicate)
		}
		return domain.ParkingSpot{}, fmt.Errorf("failed to create parking spot: %w", err)
	}
	return spot, nil
}

func (r *parkingSpotRepositoryImpl) update(ctx context.Context, spot domain.ParkingSpot) (domain.ParkingSpot, error) {
	res, err := r.exec(ctx, updateSpotSQL,
		spot.ParkingSpotNumber,
		spot.LicensePlateCar,
		spot.ModelCar,
		spot.BrandCar,
		spot.ColorCar,
		spot.ResponsibleName,
		spot.Apartment,
		spot.Block,
		spot.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ParkingSpot{}, fmt.Errorf("parking spot %s: %w", spot.ID, ErrDuplicate)
		}
		return domain.ParkingSpot{}, fmt.Errorf("failed to update parking spot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ParkingSpot{}, fmt.Errorf("parking spot with ID %s: %w", spot.ID, ErrNotFound)
	}

	// Re-read so the stored registration date is returned, not the caller's copy.
	return r.FindByID(ctx, spot.ID)
}

// FindByID retrieves a parking spot by its ID
func (r *parkingSpotRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (domain.ParkingSpot, error) {
	row, err := r.queryRow(ctx, selectSpotSQL, id.String())
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("failed to find parking spot: %w", err)
	}

	spot, err := scanParkingSpot(row)
	if err != nil {
		if isNotFoundError(err) {
			return domain.ParkingSpot{}, fmt.Errorf("parking spot with ID %s: %w", id, ErrNotFound)
		}
		return domain.ParkingSpot{}, fmt.Errorf("failed to find parking spot: %w", err)
	}
	return spot, nil
}

// FindAll retrieves all parking spots in insertion order
func (r *parkingSpotRepositoryImpl) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	rows, err := r.query(ctx, selectAllSpotsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list parking spots: %w", err)
	}
	defer rows.Close()

	spots := []domain.ParkingSpot{}
	for rows.Next() {
		spot, err := scanParkingSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parking spot: %w", err)
		}
		spots = append(spots, spot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list parking spots: %w", err)
	}
	return spots, nil
}

// Delete removes the given parking spot
func (r *parkingSpotRepositoryImpl) Delete(ctx context.Context, spot domain.ParkingSpot) error {
	return r.DeleteByID(ctx, spot.ID)
}

// DeleteByID removes a parking spot by its ID
func (r *parkingSpotRepositoryImpl) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := r.exec(ctx, deleteSpotSQL, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete parking spot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("parking spot with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExistsByID checks if a parking spot exists by its ID
func (r *parkingSpotRepositoryImpl) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	found, err := r.exists(ctx, existsByIDSQL, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to check parking spot existence: %w", err)
	}
	return found, nil
}

// ExistsByLicensePlateCar checks if any parking spot is registered to the plate
func (r *parkingSpotRepositoryImpl) ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error) {
	found, err := r.exists(ctx, existsByLicensePlateCarSQL, licensePlateCar)
	if err != nil {
		return false, fmt.Errorf("failed to check license plate: %w", err)
	}
	return found, nil
}

// ExistsByParkingSpotNumber checks if the spot number is already registered
func (r *parkingSpotRepositoryImpl) ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error) {
	found, err := r.exists(ctx, existsByParkingSpotNumberSQL, parkingSpotNumber)
	if err != nil {
		return false, fmt.Errorf("failed to check parking spot number: %w", err)
	}
	return found, nil
}

// ExistsByApartmentAndBlock checks if the apartment/block pair already has a spot
func (r *parkingSpotRepositoryImpl) ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error) {
	found, err := r.exists(ctx, existsByApartmentAndBlockSQL, apartment, block)
	if err != nil {
		return false, fmt.Errorf("failed to check apartment and block: %w", err)
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParkingSpot(row rowScanner) (domain.ParkingSpot, error) {
	var (
		spot             domain.ParkingSpot
		id               string
		registrationDate string
	)
	err := row.Scan(
		&id,
		&spot.ParkingSpotNumber,
		&spot.LicensePlateCar,
		&spot.ModelCar,
		&spot.BrandCar,
		&spot.ColorCar,
		&registrationDate,
		&spot.ResponsibleName,
		&spot.Apartment,
		&spot.Block,
	)
	if err != nil {
		return domain.ParkingSpot{}, err
	}

	spot.ID, err = uuid.Parse(id)
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("invalid stored ID %q: %w", id, err)
	}
	spot.RegistrationDate, err = time.Parse(registrationDateLayout, registrationDate)
	if err != nil {
		return domain.ParkingSpot{}, fmt.Errorf("invalid stored registration date %q: %w", registrationDate, err)
	}
	spot.RegistrationDate = spot.RegistrationDate.UTC()
	return spot, nil
}
