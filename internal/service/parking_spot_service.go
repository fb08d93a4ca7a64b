// Package service sits between the HTTP handlers and the record store.
//
// It forwards each store operation unchanged; Save and Delete run inside a
// transaction so a failure leaves no partial write behind.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jbweber/homelab/parkingcontrol/internal/domain"
	"github.com/jbweber/homelab/parkingcontrol/internal/repository"
)

// ParkingSpotService wraps a ParkingSpotRepository
type ParkingSpotService struct {
	repo repository.ParkingSpotRepository
}

// NewParkingSpotService creates a service over repo
func NewParkingSpotService(repo repository.ParkingSpotRepository) *ParkingSpotService {
	return &ParkingSpotService{repo: repo}
}

// Save persists spot inside a transaction and returns the stored record
func (s *ParkingSpotService) Save(ctx context.Context, spot domain.ParkingSpot) (domain.ParkingSpot, error) {
	var saved domain.ParkingSpot
	err := s.repo.WithinTx(ctx, func(tx repository.ParkingSpotRepository) error {
		var err error
		saved, err = tx.Save(ctx, spot)
		return err
	})
	if err != nil {
		return domain.ParkingSpot{}, err
	}
	return saved, nil
}

// Delete removes spot inside a transaction
func (s *ParkingSpotService) Delete(ctx context.Context, spot domain.ParkingSpot) error {
	return s.repo.WithinTx(ctx, func(tx repository.ParkingSpotRepository) error {
		return tx.Delete(ctx, spot)
	})
}

// FindAll returns every parking spot
func (s *ParkingSpotService) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	return s.repo.FindAll(ctx)
}

// FindByID looks up a parking spot. found is false with a nil error when no
// record has the identifier; a non-nil error is a storage failure.
func (s *ParkingSpotService) FindByID(ctx context.Context, id uuid.UUID) (spot domain.ParkingSpot, found bool, err error) {
	spot, err = s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ParkingSpot{}, false, nil
		}
		return domain.ParkingSpot{}, false, fmt.Errorf("failed to find parking spot %s: %w", id, err)
	}
	return spot, true, nil
}

func (s *ParkingSpotService) ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error) {
	return s.repo.ExistsByLicensePlateCar(ctx, licensePlateCar)
}

func (s *ParkingSpotService) ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error) {
	return s.repo.ExistsByParkingSpotNumber(ctx, parkingSpotNumber)
}

func (s *ParkingSpotService) ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error) {
	return s.repo.ExistsByApartmentAndBlock(ctx, apartment, block)
}
