package location

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/njoyaf/mboa-location/app/middleware"
	"github.com/njoyaf/mboa-location/internal/registry"
	"github.com/njoyaf/mboa-location/internal/session"
	"github.com/njoyaf/mboa-location/internal/types"
)

func setupLocationHandlerTest() (*LocationHandler, *MockStore, *MockSource, *MockPusher, *session.Manager) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service, mockStore, mockSource, mockPusher, sessions := setupLocationServiceTest()
	handler := NewLocationHandler(service, sessions, registry.Cities(), logger)
	return handler, mockStore, mockSource, mockPusher, sessions
}

func requestWithProfile(method, target, body string, profileID uuid.UUID) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "41.202.0.1:52100"
	ctx := context.WithValue(req.Context(), appMiddleware.ProfileIDKey, profileID)
	return req.WithContext(ctx)
}

func TestLocationHandler_GetLocation(t *testing.T) {
	t.Run("first contact resolves before answering", func(t *testing.T) {
		handler, mockStore, _, _, _ := setupLocationHandlerTest()
		profileID := uuid.New()

		mockStore.On("Read", mock.Anything, profileID).Return("Kribi", nil).Once()

		rec := httptest.NewRecorder()
		handler.GetLocation(rec, requestWithProfile(http.MethodGet, "/api/v1/location", "", profileID))

		require.Equal(t, http.StatusOK, rec.Code)
		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Kribi", *snap.CurrentLocation)
		assert.False(t, snap.IsDetecting)
		mockStore.AssertExpectations(t)
	})

	t.Run("resolved session answers without another store read", func(t *testing.T) {
		handler, mockStore, _, _, sessions := setupLocationHandlerTest()
		profileID := uuid.New()
		sessions.Get(profileID).SetLocation("Bamenda")

		rec := httptest.NewRecorder()
		handler.GetLocation(rec, requestWithProfile(http.MethodGet, "/api/v1/location", "", profileID))

		require.Equal(t, http.StatusOK, rec.Code)
		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Bamenda", *snap.CurrentLocation)
		mockStore.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
	})

	t.Run("missing profile identity", func(t *testing.T) {
		handler, _, _, _, _ := setupLocationHandlerTest()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/location", nil)
		handler.GetLocation(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestLocationHandler_UpdateLocation(t *testing.T) {
	t.Run("valid selection", func(t *testing.T) {
		handler, mockStore, _, mockPusher, _ := setupLocationHandlerTest()
		profileID := uuid.New()

		mockStore.On("Write", mock.Anything, profileID, "Bamenda").Return(nil).Once()
		mockPusher.On("Push", mock.Anything, profileID, "Bamenda").Once()

		rec := httptest.NewRecorder()
		handler.UpdateLocation(rec, requestWithProfile(http.MethodPut, "/api/v1/location", `{"city":"Bamenda"}`, profileID))

		require.Equal(t, http.StatusOK, rec.Code)
		var snap session.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Bamenda", *snap.CurrentLocation)
		mockStore.AssertExpectations(t)
		mockPusher.AssertExpectations(t)
	})

	t.Run("unknown city", func(t *testing.T) {
		handler, _, _, _, _ := setupLocationHandlerTest()
		profileID := uuid.New()

		rec := httptest.NewRecorder()
		handler.UpdateLocation(rec, requestWithProfile(http.MethodPut, "/api/v1/location", `{"city":"Atlantis"}`, profileID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler, _, _, _, _ := setupLocationHandlerTest()
		profileID := uuid.New()

		rec := httptest.NewRecorder()
		handler.UpdateLocation(rec, requestWithProfile(http.MethodPut, "/api/v1/location", `{"city":`, profileID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLocationHandler_RefreshLocation(t *testing.T) {
	handler, mockStore, mockSource, mockPusher, _ := setupLocationHandlerTest()
	profileID := uuid.New()

	mockSource.On("Acquire", mock.Anything, "41.202.0.1").
		Return(types.Coordinate{Lat: 2.94, Lon: 9.91}, nil).Once()
	mockStore.On("Write", mock.Anything, profileID, "Kribi").Return(nil).Once()
	mockPusher.On("Push", mock.Anything, profileID, "Kribi").Once()

	rec := httptest.NewRecorder()
	handler.RefreshLocation(rec, requestWithProfile(http.MethodPost, "/api/v1/location/refresh", "", profileID))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotNil(t, snap.CurrentLocation)
	assert.Equal(t, "Kribi", *snap.CurrentLocation)

	// Refresh never consults the stored preference first.
	mockStore.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
	mockSource.AssertExpectations(t)
}

func TestLocationHandler_UpdateViewMode(t *testing.T) {
	t.Run("valid mode", func(t *testing.T) {
		handler, _, _, _, sessions := setupLocationHandlerTest()
		profileID := uuid.New()

		rec := httptest.NewRecorder()
		handler.UpdateViewMode(rec, requestWithProfile(http.MethodPut, "/api/v1/location/view-mode", `{"viewMode":"nearby"}`, profileID))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, types.ViewModeNearby, sessions.Get(profileID).Snapshot().ViewMode)
	})

	t.Run("invalid mode", func(t *testing.T) {
		handler, _, _, _, _ := setupLocationHandlerTest()
		profileID := uuid.New()

		rec := httptest.NewRecorder()
		handler.UpdateViewMode(rec, requestWithProfile(http.MethodPut, "/api/v1/location/view-mode", `{"viewMode":"everywhere"}`, profileID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLocationHandler_ClearLocation(t *testing.T) {
	handler, mockStore, _, _, _ := setupLocationHandlerTest()
	profileID := uuid.New()

	mockStore.On("Clear", mock.Anything, profileID).Return(nil).Once()

	rec := httptest.NewRecorder()
	handler.ClearLocation(rec, requestWithProfile(http.MethodDelete, "/api/v1/location", "", profileID))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	mockStore.AssertExpectations(t)
}

func TestLocationHandler_ListCities(t *testing.T) {
	handler, _, _, _, _ := setupLocationHandlerTest()

	rec := httptest.NewRecorder()
	handler.ListCities(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var cities []types.City
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cities))
	assert.Equal(t, len(registry.Cities()), len(cities))
	assert.Equal(t, "Douala", cities[0].Name)
}
