package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jbweber/homelab/parkingcontrol/internal/domain"
	"github.com/jbweber/homelab/parkingcontrol/internal/metrics"
	"github.com/jbweber/homelab/parkingcontrol/internal/repository"
)

// Outcome messages returned to clients as plain text
const (
	MsgLicensePlateInUse   = "Conflict: License Plate Car is already in use."
	MsgParkingSpotNumInUse = "Conflict: Parking Spot Number is already in use."
	MsgApartmentBlockInUse = "Conflict: Apartment and block already in use"
	MsgGetNotFound         = "ID not found."
	MsgUpdateNotFound      = "Parking Spot not found"
	MsgDeleteNotFound      = "Id not found"
	MsgDeletedSuccessfully = "Parking spot deleted successfully"
)

const (
	invalidSpotIDMessage   = "Invalid parking spot ID"
	invalidJSONMessage     = "Invalid JSON"
	storageConflictMessage = "Parking spot conflicts with an existing record"
	storageFailureMessage  = "Internal server error"

	maxRequestBodyBytes = 1 << 20
)

// Operation labels used for outcome metrics and logs
const (
	operationCreate = "create"
	operationList   = "list"
	operationGet    = "get"
	operationUpdate = "update"
	operationDelete = "delete"
)

// ParkingSpotsStore defines the service interface for parking spot handlers
type ParkingSpotsStore interface {
	Save(ctx context.Context, spot domain.ParkingSpot) (domain.ParkingSpot, error)
	Delete(ctx context.Context, spot domain.ParkingSpot) error
	FindAll(ctx context.Context) ([]domain.ParkingSpot, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.ParkingSpot, bool, error)
	ExistsByLicensePlateCar(ctx context.Context, licensePlateCar string) (bool, error)
	ExistsByParkingSpotNumber(ctx context.Context, parkingSpotNumber string) (bool, error)
	ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error)
}

// ParkingSpots groups parking spot handlers for testability
type ParkingSpots struct {
	store    ParkingSpotsStore
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// NewParkingSpots creates the handlers. m may be nil.
func NewParkingSpots(store ParkingSpotsStore, m *metrics.Metrics) *ParkingSpots {
	return &ParkingSpots{
		store:    store,
		metrics:  m,
		validate: newValidator(),
		now:      time.Now,
	}
}

// ParkingSpotRequest is the body of create and update requests
type ParkingSpotRequest struct {
	ParkingSpotNumber string `json:"parkingSpotNumber" validate:"required,notblank"`
	LicensePlateCar   string `json:"licensePlateCar" validate:"required,notblank"`
	ModelCar          string `json:"modelCar" validate:"required,notblank"`
	BrandCar          string `json:"brandCar" validate:"required,notblank"`
	ColorCar          string `json:"colorCar" validate:"required,notblank"`
	ResponsibleName   string `json:"responsibleName" validate:"required,notblank"`
	Apartment         string `json:"apartment" validate:"required,notblank"`
	Block             string `json:"block" validate:"required,notblank"`
}

// ParkingSpotResponse is the wire form of a parking spot
type ParkingSpotResponse struct {
	ID                uuid.UUID `json:"id"`
	ParkingSpotNumber string    `json:"parkingSpotNumber"`
	LicensePlateCar   string    `json:"licensePlateCar"`
	ModelCar          string    `json:"modelCar"`
	BrandCar          string    `json:"brandCar"`
	ColorCar          string    `json:"colorCar"`
	RegistrationDate  time.Time `json:"registrationDate"`
	ResponsibleName   string    `json:"responsibleName"`
	Apartment         string    `json:"apartment"`
	Block             string    `json:"block"`
}

// toDomain maps a request onto a new, unsaved parking spot
func (req ParkingSpotRequest) toDomain() domain.ParkingSpot {
	var spot domain.ParkingSpot
	req.applyTo(&spot)
	return spot
}

// applyTo overwrites every replaceable field of spot; ID and RegistrationDate are left alone
func (req ParkingSpotRequest) applyTo(spot *domain.ParkingSpot) {
	spot.ParkingSpotNumber = req.ParkingSpotNumber
	spot.LicensePlateCar = req.LicensePlateCar
	spot.ModelCar = req.ModelCar
	spot.BrandCar = req.BrandCar
	spot.ColorCar = req.ColorCar
	spot.ResponsibleName = req.ResponsibleName
	spot.Apartment = req.Apartment
	spot.Block = req.Block
}

func toResponse(spot domain.ParkingSpot) ParkingSpotResponse {
	return ParkingSpotResponse{
		ID:                spot.ID,
		ParkingSpotNumber: spot.ParkingSpotNumber,
		LicensePlateCar:   spot.LicensePlateCar,
		ModelCar:          spot.ModelCar,
		BrandCar:          spot.BrandCar,
		ColorCar:          spot.ColorCar,
		RegistrationDate:  spot.RegistrationDate.UTC(),
		ResponsibleName:   spot.ResponsibleName,
		Apartment:         spot.Apartment,
		Block:             spot.Block,
	}
}

// CreateParkingSpotHandler handles POST /parking-spot.
//
// Uniqueness is checked in order (license plate, spot number, apartment and
// block) and the first collision answers 409. The check and the insert are
// separate statements, so two concurrent creates can both pass the checks.
func (p *ParkingSpots) CreateParkingSpotHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := p.decodeRequest(w, r, operationCreate)
	if !ok {
		return
	}
	ctx := r.Context()

	exists, err := p.store.ExistsByLicensePlateCar(ctx, req.LicensePlateCar)
	if err != nil {
		p.storageFailure(w, operationCreate, err)
		return
	}
	if exists {
		p.conflict(w, MsgLicensePlateInUse)
		return
	}

	exists, err = p.store.ExistsByParkingSpotNumber(ctx, req.ParkingSpotNumber)
	if err != nil {
		p.storageFailure(w, operationCreate, err)
		return
	}
	if exists {
		p.conflict(w, MsgParkingSpotNumInUse)
		return
	}

	exists, err = p.store.ExistsByApartmentAndBlock(ctx, req.Apartment, req.Block)
	if err != nil {
		p.storageFailure(w, operationCreate, err)
		return
	}
	if exists {
		p.conflict(w, MsgApartmentBlockInUse)
		return
	}

	spot := req.toDomain()
	spot.RegistrationDate = p.now().UTC()

	saved, err := p.store.Save(ctx, spot)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			p.metrics.RecordOutcome(operationCreate, metrics.OutcomeConflict)
			writeError(w, http.StatusConflict, storageConflictMessage)
			return
		}
		p.storageFailure(w, operationCreate, err)
		return
	}

	p.metrics.RecordOutcome(operationCreate, metrics.OutcomeCreated)
	writeJSON(w, http.StatusCreated, toResponse(saved))
}

// ListParkingSpotsHandler handles GET /parking-spot
func (p *ParkingSpots) ListParkingSpotsHandler(w http.ResponseWriter, r *http.Request) {
	spots, err := p.store.FindAll(r.Context())
	if err != nil {
		p.storageFailure(w, operationList, err)
		return
	}

	response := make([]ParkingSpotResponse, len(spots))
	for i, spot := range spots {
		response[i] = toResponse(spot)
	}

	p.metrics.RecordOutcome(operationList, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, response)
}

// GetParkingSpotHandler handles GET /parking-spot/{id}
func (p *ParkingSpots) GetParkingSpotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := p.parseID(w, r, operationGet)
	if !ok {
		return
	}

	spot, found, err := p.store.FindByID(r.Context(), id)
	if err != nil {
		p.storageFailure(w, operationGet, err)
		return
	}
	if !found {
		p.notFound(w, operationGet, MsgGetNotFound)
		return
	}

	p.metrics.RecordOutcome(operationGet, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, toResponse(spot))
}

// UpdateParkingSpotHandler handles PUT /parking-spot/{id}.
//
// Every field except id and registrationDate is replaced. Uniqueness is not
// re-checked here, so an update may duplicate another record's plate, spot
// number or apartment and block unless the database enforces it.
func (p *ParkingSpots) UpdateParkingSpotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := p.parseID(w, r, operationUpdate)
	if !ok {
		return
	}
	req, ok := p.decodeRequest(w, r, operationUpdate)
	if !ok {
		return
	}
	ctx := r.Context()

	spot, found, err := p.store.FindByID(ctx, id)
	if err != nil {
		p.storageFailure(w, operationUpdate, err)
		return
	}
	if !found {
		p.notFound(w, operationUpdate, MsgUpdateNotFound)
		return
	}

	req.applyTo(&spot)

	updated, err := p.store.Save(ctx, spot)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Deleted between the lookup and the save.
			p.notFound(w, operationUpdate, MsgUpdateNotFound)
		case errors.Is(err, repository.ErrDuplicate):
			p.metrics.RecordOutcome(operationUpdate, metrics.OutcomeConflict)
			writeError(w, http.StatusConflict, storageConflictMessage)
		default:
			p.storageFailure(w, operationUpdate, err)
		}
		return
	}

	p.metrics.RecordOutcome(operationUpdate, metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, toResponse(updated))
}

// DeleteParkingSpotHandler handles DELETE /parking-spot/{id}
func (p *ParkingSpots) DeleteParkingSpotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := p.parseID(w, r, operationDelete)
	if !ok {
		return
	}
	ctx := r.Context()

	spot, found, err := p.store.FindByID(ctx, id)
	if err != nil {
		p.storageFailure(w, operationDelete, err)
		return
	}
	if !found {
		p.notFound(w, operationDelete, MsgDeleteNotFound)
		return
	}

	if err := p.store.Delete(ctx, spot); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.notFound(w, operationDelete, MsgDeleteNotFound)
			return
		}
		p.storageFailure(w, operationDelete, err)
		return
	}

	p.metrics.RecordOutcome(operationDelete, metrics.OutcomeSuccess)
	writeMessage(w, http.StatusOK, MsgDeletedSuccessfully)
}

// decodeRequest reads and validates a create/update body, answering 400 on failure
func (p *ParkingSpots) decodeRequest(w http.ResponseWriter, r *http.Request, operation string) (ParkingSpotRequest, bool) {
	var req ParkingSpotRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		p.metrics.RecordOutcome(operation, metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, invalidJSONMessage)
		return ParkingSpotRequest{}, false
	}
	if err := p.validate.Struct(req); err != nil {
		p.metrics.RecordOutcome(operation, metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return ParkingSpotRequest{}, false
	}
	return req, true
}

func (p *ParkingSpots) parseID(w http.ResponseWriter, r *http.Request, operation string) (uuid.UUID, bool) {
	id, err := spotIDParam(r)
	if err != nil {
		p.metrics.RecordOutcome(operation, metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, invalidSpotIDMessage)
		return uuid.Nil, false
	}
	return id, true
}

func (p *ParkingSpots) conflict(w http.ResponseWriter, msg string) {
	p.metrics.RecordOutcome(operationCreate, metrics.OutcomeConflict)
	writeMessage(w, http.StatusConflict, msg)
}

func (p *ParkingSpots) notFound(w http.ResponseWriter, operation, msg string) {
	p.metrics.RecordOutcome(operation, metrics.OutcomeNotFound)
	writeMessage(w, http.StatusNotFound, msg)
}

func (p *ParkingSpots) storageFailure(w http.ResponseWriter, operation string, err error) {
	log.Printf("[ERROR] parking spot %s failed: %v", operation, err)
	p.metrics.RecordOutcome(operation, metrics.OutcomeError)
	writeError(w, http.StatusInternalServerError, storageFailureMessage)
}
