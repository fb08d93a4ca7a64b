package domain

import (
	"time"

	"github.com/google/uuid"
)

// ParkingSpot represents a parking spot registration for an apartment
type ParkingSpot struct {
	ID                uuid.UUID // Unique identifier, assigned on creation
	ParkingSpotNumber string    // Unique spot number
	LicensePlateCar   string    // Unique license plate of the registered car
	ModelCar          string    // Car model
	BrandCar          string    // Car brand
	ColorCar          string    // Car color
	RegistrationDate  time.Time // Set once at creation, always UTC
	ResponsibleName   string    // Name of the person responsible for the spot
	Apartment         string    // Apartment number; unique together with Block
	Block             string    // Block of the apartment
}

// IsNew reports whether the spot has not been persisted yet.
func (p ParkingSpot) IsNew() bool {
	return p.ID == uuid.Nil
}
