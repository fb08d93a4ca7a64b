package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/parkingcontrol/internal/domain"
	"github.com/jbweber/homelab/parkingcontrol/internal/repository"
)

type mockParkingSpotsStore struct {
	spots     map[uuid.UUID]domain.ParkingSpot
	order     []uuid.UUID
	err       error // returned by every call when set
	saveErr   error
	deleteErr error
	saves     int
	deletes   int
	checks    []string
}

func newMockStore(spots ...domain.ParkingSpot) *mockParkingSpotsStore {
	m := &mockParkingSpotsStore{spots: map[uuid.UUID]domain.ParkingSpot{}}
	for _, s := range spots {
		m.spots[s.ID] = s
		m.order = append(m.order, s.ID)
	}
	return m
}

func (m *mockParkingSpotsStore) Save(ctx context.Context, spot domain.ParkingSpot) (domain.ParkingSpot, error) {
	m.saves++
	if m.err != nil {
		return domain.ParkingSpot{}, m.err
	}
	if m.saveErr != nil {
		return domain.ParkingSpot{}, m.saveErr
	}
	if spot.ID == uuid.Nil {
		spot.ID = uuid.New()
		m.order = append(m.order, spot.ID)
	} else {
		existing, ok := m.spots[spot.ID]
		if !ok {
			return domain.ParkingSpot{}, repository.ErrNotFound
		}
		spot.RegistrationDate = existing.RegistrationDate
	}
	m.spots[spot.ID] = spot
	return spot, nil
}

func (m *mockParkingSpotsStore) Delete(ctx context.Context, spot domain.ParkingSpot) error {
	m.deletes++
	if m.err != nil {
		return m.err
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.spots, spot.ID)
	return nil
}

func (m *mockParkingSpotsStore) FindAll(ctx context.Context) ([]domain.ParkingSpot, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []domain.ParkingSpot
	for _, id := range m.order {
		if s, ok := m.spots[id]; ok {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockParkingSpotsStore) FindByID(ctx context.Context, id uuid.UUID) (domain.ParkingSpot, bool, error) {
	if m.err != nil {
		return domain.ParkingSpot{}, false, m.err
	}
	s, ok := m.spots[id]
	return s, ok, nil
}

func (m *mockParkingSpotsStore) ExistsByLicensePlateCar(ctx context.Context, plate string) (bool, error) {
	m.checks = append(m.checks, "plate")
	if m.err != nil {
		return false, m.err
	}
	for _, s := range m.spots {
		if s.LicensePlateCar == plate {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockParkingSpotsStore) ExistsByParkingSpotNumber(ctx context.Context, number string) (bool, error) {
	m.checks = append(m.checks, "number")
	if m.err != nil {
		return false, m.err
	}
	for _, s := range m.spots {
		if s.ParkingSpotNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockParkingSpotsStore) ExistsByApartmentAndBlock(ctx context.Context, apartment, block string) (bool, error) {
	m.checks = append(m.checks, "apartment")
	if m.err != nil {
		return false, m.err
	}
	for _, s := range m.spots {
		if s.Apartment == apartment && s.Block == block {
			return true, nil
		}
	}
	return false, nil
}

var fixedNow = time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

func newTestHandlers(store ParkingSpotsStore) *ParkingSpots {
	p := NewParkingSpots(store, nil)
	p.now = func() time.Time { return fixedNow }
	return p
}

func existingSpot() domain.ParkingSpot {
	return domain.ParkingSpot{
		ID:                uuid.MustParse("6f1c2b7e-3a4d-4e5f-9a8b-1c2d3e4f5a6b"),
		ParkingSpotNumber: "101",
		LicensePlateCar:   "ABC1234",
		ModelCar:          "Civic",
		BrandCar:          "Honda",
		ColorCar:          "Blue",
		RegistrationDate:  time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC),
		ResponsibleName:   "Maria Silva",
		Apartment:         "101",
		Block:             "A",
	}
}

func spotRequest(number, plate, apartment, block string) ParkingSpotRequest {
	return ParkingSpotRequest{
		ParkingSpotNumber: number,
		LicensePlateCar:   plate,
		ModelCar:          "Corolla",
		BrandCar:          "Toyota",
		ColorCar:          "Red",
		ResponsibleName:   "Joao Souza",
		Apartment:         apartment,
		Block:             block,
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(body)
}

// withID attaches a chi route context carrying the {id} parameter
func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateParkingSpotHandler_Success(t *testing.T) {
	store := newMockStore()
	handlers := newTestHandlers(store)

	req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, spotRequest("101", "ABC1234", "101", "A")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handlers.CreateParkingSpotHandler(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ParkingSpotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEqual(t, uuid.Nil, response.ID)
	assert.Equal(t, "ABC1234", response.LicensePlateCar)
	assert.Equal(t, "Joao Souza", response.ResponsibleName)
	assert.True(t, fixedNow.Equal(response.RegistrationDate))
	assert.Equal(t, []string{"plate", "number", "apartment"}, store.checks)
	assert.Equal(t, 1, store.saves)
}

func TestCreateParkingSpotHandler_RegistrationDateIsUTC(t *testing.T) {
	store := newMockStore()
	handlers := NewParkingSpots(store, nil)
	local := time.FixedZone("BRT", -3*60*60)
	handlers.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, local) }

	req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, spotRequest("101", "ABC1234", "101", "A")))
	w := httptest.NewRecorder()
	handlers.CreateParkingSpotHandler(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"registrationDate":"2024-03-15T12:30:00Z"`)
}

func TestCreateParkingSpotHandler_Conflicts(t *testing.T) {
	tests := []struct {
		name       string
		request    ParkingSpotRequest
		wantMsg    string
		wantChecks []string
	}{
		{
			name:       "license plate in use",
			request:    spotRequest("999", "ABC1234", "999", "Z"),
			wantMsg:    MsgLicensePlateInUse,
			wantChecks: []string{"plate"},
		},
		{
			name:       "plate and number both collide reports plate",
			request:    spotRequest("101", "ABC1234", "101", "A"),
			wantMsg:    MsgLicensePlateInUse,
			wantChecks: []string{"plate"},
		},
		{
			name:       "spot number in use",
			request:    spotRequest("101", "NEW0001", "999", "Z"),
			wantMsg:    MsgParkingSpotNumInUse,
			wantChecks: []string{"plate", "number"},
		},
		{
			name:       "number and apartment collide reports number",
			request:    spotRequest("101", "NEW0001", "101", "A"),
			wantMsg:    MsgParkingSpotNumInUse,
			wantChecks: []string{"plate", "number"},
		},
		{
			name:       "apartment and block in use",
			request:    spotRequest("999", "NEW0001", "101", "A"),
			wantMsg:    MsgApartmentBlockInUse,
			wantChecks: []string{"plate", "number", "apartment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore(existingSpot())
			handlers := newTestHandlers(store)

			req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, tt.request))
			w := httptest.NewRecorder()
			handlers.CreateParkingSpotHandler(w, req)

			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Equal(t, tt.wantMsg, w.Body.String())
			assert.Equal(t, tt.wantChecks, store.checks)
			assert.Equal(t, 0, store.saves, "conflicting create must not persist")
			assert.Len(t, store.spots, 1)
		})
	}
}

func TestCreateParkingSpotHandler_SameApartmentDifferentBlock(t *testing.T) {
	store := newMockStore(existingSpot())
	handlers := newTestHandlers(store)

	req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, spotRequest("102", "NEW0001", "101", "B")))
	w := httptest.NewRecorder()
	handlers.CreateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateParkingSpotHandler_InvalidJSON(t *testing.T) {
	store := newMockStore()
	handlers := newTestHandlers(store)

	req := httptest.NewRequest(http.MethodPost, "/parking-spot", bytes.NewReader([]byte("invalid json")))
	w := httptest.NewRecorder()
	handlers.CreateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.checks)
}

func TestCreateParkingSpotHandler_BlankFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ParkingSpotRequest)
		wantErr string
	}{
		{"missing plate", func(r *ParkingSpotRequest) { r.LicensePlateCar = "" }, "licensePlateCar must not be blank"},
		{"blank block", func(r *ParkingSpotRequest) { r.Block = "   " }, "block must not be blank"},
		{"blank responsible name", func(r *ParkingSpotRequest) { r.ResponsibleName = "\t" }, "responsibleName must not be blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			handlers := newTestHandlers(store)

			body := spotRequest("101", "ABC1234", "101", "A")
			tt.mutate(&body)

			req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, body))
			w := httptest.NewRecorder()
			handlers.CreateParkingSpotHandler(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Contains(t, response.Error, tt.wantErr)
			assert.Empty(t, store.checks)
			assert.Equal(t, 0, store.saves)
		})
	}
}

func TestCreateParkingSpotHandler_StoreError(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("database is locked")
	handlers := newTestHandlers(store)

	req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, spotRequest("101", "ABC1234", "101", "A")))
	w := httptest.NewRecorder()
	handlers.CreateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database is locked")
}

func TestCreateParkingSpotHandler_StorageDuplicate(t *testing.T) {
	store := newMockStore()
	store.saveErr = fmt.Errorf("parking spot 101: %w", repository.ErrDuplicate)
	handlers := newTestHandlers(store)

	req := httptest.NewRequest(http.MethodPost, "/parking-spot", jsonBody(t, spotRequest("101", "ABC1234", "101", "A")))
	w := httptest.NewRecorder()
	handlers.CreateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListParkingSpotsHandler_Empty(t *testing.T) {
	handlers := newTestHandlers(newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/parking-spot", nil)
	w := httptest.NewRecorder()
	handlers.ListParkingSpotsHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestListParkingSpotsHandler_Success(t *testing.T) {
	other := existingSpot()
	other.ID = uuid.New()
	other.LicensePlateCar = "XYZ9876"
	handlers := newTestHandlers(newMockStore(existingSpot(), other))

	req := httptest.NewRequest(http.MethodGet, "/parking-spot", nil)
	w := httptest.NewRecorder()
	handlers.ListParkingSpotsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response []ParkingSpotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 2)
	assert.Equal(t, "ABC1234", response[0].LicensePlateCar)
	assert.Equal(t, "XYZ9876", response[1].LicensePlateCar)
}

func TestListParkingSpotsHandler_Error(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("database error")
	handlers := newTestHandlers(store)

	req := httptest.NewRequest(http.MethodGet, "/parking-spot", nil)
	w := httptest.NewRecorder()
	handlers.ListParkingSpotsHandler(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetParkingSpotHandler(t *testing.T) {
	spot := existingSpot()
	handlers := newTestHandlers(newMockStore(spot))

	t.Run("found", func(t *testing.T) {
		req := withID(httptest.NewRequest(http.MethodGet, "/parking-spot/"+spot.ID.String(), nil), spot.ID.String())
		w := httptest.NewRecorder()
		handlers.GetParkingSpotHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response ParkingSpotResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, spot.ID, response.ID)
		assert.True(t, spot.RegistrationDate.Equal(response.RegistrationDate))
		assert.Contains(t, w.Body.String(), `"id":"6f1c2b7e-3a4d-4e5f-9a8b-1c2d3e4f5a6b"`)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		req := withID(httptest.NewRequest(http.MethodGet, "/parking-spot/"+id, nil), id)
		w := httptest.NewRecorder()
		handlers.GetParkingSpotHandler(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, MsgGetNotFound, w.Body.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		req := withID(httptest.NewRequest(http.MethodGet, "/parking-spot/not-a-uuid", nil), "not-a-uuid")
		w := httptest.NewRecorder()
		handlers.GetParkingSpotHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateParkingSpotHandler_Success(t *testing.T) {
	spot := existingSpot()
	store := newMockStore(spot)
	handlers := newTestHandlers(store)

	body := spotRequest("202", "NEW0001", "202", "B")
	req := withID(httptest.NewRequest(http.MethodPut, "/parking-spot/"+spot.ID.String(), jsonBody(t, body)), spot.ID.String())
	w := httptest.NewRecorder()
	handlers.UpdateParkingSpotHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response ParkingSpotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, spot.ID, response.ID)
	assert.Equal(t, "202", response.ParkingSpotNumber)
	assert.Equal(t, "NEW0001", response.LicensePlateCar)
	assert.Equal(t, "Corolla", response.ModelCar)
	assert.Equal(t, "Toyota", response.BrandCar)
	assert.Equal(t, "Red", response.ColorCar)
	assert.Equal(t, "Joao Souza", response.ResponsibleName)
	assert.Equal(t, "202", response.Apartment)
	assert.Equal(t, "B", response.Block)
	assert.True(t, spot.RegistrationDate.Equal(response.RegistrationDate), "registration date must not change")
}

func TestUpdateParkingSpotHandler_SkipsUniquenessChecks(t *testing.T) {
	first := existingSpot()
	second := existingSpot()
	second.ID = uuid.New()
	second.ParkingSpotNumber = "102"
	second.LicensePlateCar = "XYZ9876"
	second.Apartment = "102"
	store := newMockStore(first, second)
	handlers := newTestHandlers(store)

	// Collides with every unique field of the first spot
	body := spotRequest(first.ParkingSpotNumber, first.LicensePlateCar, first.Apartment, first.Block)
	req := withID(httptest.NewRequest(http.MethodPut, "/parking-spot/"+second.ID.String(), jsonBody(t, body)), second.ID.String())
	w := httptest.NewRecorder()
	handlers.UpdateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.checks)
}

func TestUpdateParkingSpotHandler_NotFound(t *testing.T) {
	store := newMockStore(existingSpot())
	handlers := newTestHandlers(store)

	id := uuid.New().String()
	req := withID(httptest.NewRequest(http.MethodPut, "/parking-spot/"+id, jsonBody(t, spotRequest("202", "NEW0001", "202", "B"))), id)
	w := httptest.NewRecorder()
	handlers.UpdateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, MsgUpdateNotFound, w.Body.String())
	assert.Equal(t, 0, store.saves)
}

func TestUpdateParkingSpotHandler_InvalidBody(t *testing.T) {
	spot := existingSpot()
	store := newMockStore(spot)
	handlers := newTestHandlers(store)

	body := spotRequest("202", "", "202", "B")
	req := withID(httptest.NewRequest(http.MethodPut, "/parking-spot/"+spot.ID.String(), jsonBody(t, body)), spot.ID.String())
	w := httptest.NewRecorder()
	handlers.UpdateParkingSpotHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.saves)
	assert.Equal(t, "ABC1234", store.spots[spot.ID].LicensePlateCar)
}

func TestDeleteParkingSpotHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		spot := existingSpot()
		store := newMockStore(spot)
		handlers := newTestHandlers(store)

		req := withID(httptest.NewRequest(http.MethodDelete, "/parking-spot/"+spot.ID.String(), nil), spot.ID.String())
		w := httptest.NewRecorder()
		handlers.DeleteParkingSpotHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, MsgDeletedSuccessfully, w.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Empty(t, store.spots)
	})

	t.Run("not found", func(t *testing.T) {
		store := newMockStore()
		handlers := newTestHandlers(store)

		id := uuid.New().String()
		req := withID(httptest.NewRequest(http.MethodDelete, "/parking-spot/"+id, nil), id)
		w := httptest.NewRecorder()
		handlers.DeleteParkingSpotHandler(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, MsgDeleteNotFound, w.Body.String())
		assert.Equal(t, 0, store.deletes)
	})

	t.Run("storage error", func(t *testing.T) {
		spot := existingSpot()
		store := newMockStore(spot)
		store.deleteErr = errors.New("disk I/O error")
		handlers := newTestHandlers(store)

		req := withID(httptest.NewRequest(http.MethodDelete, "/parking-spot/"+spot.ID.String(), nil), spot.ID.String())
		w := httptest.NewRecorder()
		handlers.DeleteParkingSpotHandler(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
