package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/njoyaf/mboa-location/internal/registry"
	"github.com/njoyaf/mboa-location/internal/session"
	"github.com/njoyaf/mboa-location/internal/types"
)

// MockStore is a mock implementation of prefs.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Read(ctx context.Context, profileID uuid.UUID) (string, error) {
	args := m.Called(ctx, profileID)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Write(ctx context.Context, profileID uuid.UUID, city string) error {
	args := m.Called(ctx, profileID, city)
	return args.Error(0)
}

func (m *MockStore) Clear(ctx context.Context, profileID uuid.UUID) error {
	args := m.Called(ctx, profileID)
	return args.Error(0)
}

// MockSource is a mock implementation of position.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Acquire(ctx context.Context, clientIP string) (types.Coordinate, error) {
	args := m.Called(ctx, clientIP)
	return args.Get(0).(types.Coordinate), args.Error(1)
}

// MockPusher is a mock implementation of Pusher
type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, profileID uuid.UUID, city string) {
	m.Called(ctx, profileID, city)
}

// Helper to setup service with mock collaborators
func setupLocationServiceTest() (*LocationServiceImpl, *MockStore, *MockSource, *MockPusher, *session.Manager) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockStore := new(MockStore)
	mockSource := new(MockSource)
	mockPusher := new(MockPusher)
	sessions := session.NewManager()
	service := NewLocationService(mockStore, mockSource, sessions, mockPusher, registry.Cities(), logger)
	return service, mockStore, mockSource, mockPusher, sessions
}

func TestLocationServiceImpl_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("stored preference short-circuits detection", func(t *testing.T) {
		service, mockStore, mockSource, _, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Read", mock.Anything, profileID).Return("Kribi", nil).Once()

		city, err := service.Resolve(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Kribi", city)

		snap := sessions.Get(profileID).Snapshot()
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Kribi", *snap.CurrentLocation)

		mockSource.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
		mockStore.AssertExpectations(t)
	})

	t.Run("empty store detects and persists nearest city", func(t *testing.T) {
		service, mockStore, mockSource, _, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Read", mock.Anything, profileID).Return("", types.ErrNoPreference).Once()
		mockSource.On("Acquire", mock.Anything, "41.202.0.1").
			Return(types.Coordinate{Lat: 3.90, Lon: 11.50}, nil).Once()
		mockStore.On("Write", mock.Anything, profileID, "Yaounde").Return(nil).Once()

		city, err := service.Resolve(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Yaounde", city)

		snap := sessions.Get(profileID).Snapshot()
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Yaounde", *snap.CurrentLocation)
		assert.False(t, snap.IsDetecting)

		mockStore.AssertExpectations(t)
		mockSource.AssertExpectations(t)
	})

	t.Run("position denial falls back to default and persists it", func(t *testing.T) {
		service, mockStore, mockSource, _, _ := setupLocationServiceTest()
		profileID := uuid.New()

		// First resolution: empty store, denied position.
		mockStore.On("Read", mock.Anything, profileID).Return("", types.ErrNoPreference).Once()
		mockSource.On("Acquire", mock.Anything, "41.202.0.1").
			Return(types.Coordinate{}, types.ErrPositionUnavailable).Once()
		mockStore.On("Write", mock.Anything, profileID, "Douala").Return(nil).Once()

		city, err := service.Resolve(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Douala", city)

		// Second resolution: the persisted fallback is found, no second
		// position call happens.
		mockStore.On("Read", mock.Anything, profileID).Return("Douala", nil).Once()

		city, err = service.Resolve(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Douala", city)

		mockSource.AssertNumberOfCalls(t, "Acquire", 1)
		mockStore.AssertExpectations(t)
	})

	t.Run("storage unavailable everywhere still resolves", func(t *testing.T) {
		service, mockStore, mockSource, _, _ := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Read", mock.Anything, profileID).Return("", types.ErrStorageUnavailable).Once()
		mockSource.On("Acquire", mock.Anything, "41.202.0.1").
			Return(types.Coordinate{}, types.ErrPositionUnavailable).Once()
		mockStore.On("Write", mock.Anything, profileID, "Douala").Return(types.ErrStorageUnavailable).Once()

		city, err := service.Resolve(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Douala", city)
		mockStore.AssertExpectations(t)
	})

	t.Run("detected coordinate at douala resolves douala", func(t *testing.T) {
		service, mockStore, mockSource, _, _ := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Read", mock.Anything, profileID).Return("", types.ErrNoPreference).Once()
		mockSource.On("Acquire", mock.Anything, "41.202.0.1").
			Return(types.Coordinate{Lat: 4.05, Lon: 9.77}, nil).Once()
		mockStore.On("Write", mock.Anything, profileID, "Douala").Return(nil).Once()

		city, err := service.Resolve(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Douala", city)
	})
}

func TestLocationServiceImpl_UpdatePreference(t *testing.T) {
	ctx := context.Background()

	t.Run("updates store, session and pushes exactly once", func(t *testing.T) {
		service, mockStore, _, mockPusher, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Write", mock.Anything, profileID, "Bamenda").Return(nil).Once()
		mockPusher.On("Push", mock.Anything, profileID, "Bamenda").Once()

		err := service.UpdatePreference(ctx, profileID, "Bamenda")
		require.NoError(t, err)

		snap := sessions.Get(profileID).Snapshot()
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Bamenda", *snap.CurrentLocation)

		mockPusher.AssertNumberOfCalls(t, "Push", 1)
		mockStore.AssertExpectations(t)
		mockPusher.AssertExpectations(t)
	})

	t.Run("normalizes case against the registry", func(t *testing.T) {
		service, mockStore, _, mockPusher, _ := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Write", mock.Anything, profileID, "Kribi").Return(nil).Once()
		mockPusher.On("Push", mock.Anything, profileID, "Kribi").Once()

		require.NoError(t, service.UpdatePreference(ctx, profileID, "kribi"))
		mockStore.AssertExpectations(t)
	})

	t.Run("rejects unknown city without side effects", func(t *testing.T) {
		service, mockStore, _, mockPusher, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		err := service.UpdatePreference(ctx, profileID, "Atlantis")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrUnknownCity))

		assert.Nil(t, sessions.Get(profileID).Snapshot().CurrentLocation)
		mockStore.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
		mockPusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage failure does not block the selection", func(t *testing.T) {
		service, mockStore, _, mockPusher, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Write", mock.Anything, profileID, "Limbe").Return(types.ErrStorageUnavailable).Once()
		mockPusher.On("Push", mock.Anything, profileID, "Limbe").Once()

		require.NoError(t, service.UpdatePreference(ctx, profileID, "Limbe"))

		snap := sessions.Get(profileID).Snapshot()
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Limbe", *snap.CurrentLocation)
	})
}

func TestLocationServiceImpl_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("bypasses the stored preference", func(t *testing.T) {
		service, mockStore, mockSource, mockPusher, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		// A stored value exists, but Refresh must not consult it.
		mockSource.On("Acquire", mock.Anything, "41.202.0.1").
			Return(types.Coordinate{Lat: 2.94, Lon: 9.91}, nil).Once()
		mockStore.On("Write", mock.Anything, profileID, "Kribi").Return(nil).Once()
		mockPusher.On("Push", mock.Anything, profileID, "Kribi").Once()

		city, err := service.Refresh(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Kribi", city)

		snap := sessions.Get(profileID).Snapshot()
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Kribi", *snap.CurrentLocation)

		mockStore.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
		mockSource.AssertNumberOfCalls(t, "Acquire", 1)
		mockStore.AssertExpectations(t)
		mockPusher.AssertExpectations(t)
	})

	t.Run("failed detection overwrites with the default", func(t *testing.T) {
		service, mockStore, mockSource, mockPusher, _ := setupLocationServiceTest()
		profileID := uuid.New()

		mockSource.On("Acquire", mock.Anything, "41.202.0.1").
			Return(types.Coordinate{}, types.ErrPositionUnavailable).Once()
		mockStore.On("Write", mock.Anything, profileID, "Douala").Return(nil).Once()
		mockPusher.On("Push", mock.Anything, profileID, "Douala").Once()

		city, err := service.Refresh(ctx, profileID, "41.202.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Douala", city)
	})
}

func TestLocationServiceImpl_ClearPreference(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the store but keeps the session cache", func(t *testing.T) {
		service, mockStore, _, _, sessions := setupLocationServiceTest()
		profileID := uuid.New()
		sessions.Get(profileID).SetLocation("Kribi")

		mockStore.On("Clear", mock.Anything, profileID).Return(nil).Once()

		require.NoError(t, service.ClearPreference(ctx, profileID))

		snap := sessions.Get(profileID).Snapshot()
		require.NotNil(t, snap.CurrentLocation)
		assert.Equal(t, "Kribi", *snap.CurrentLocation)
		mockStore.AssertExpectations(t)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		service, mockStore, _, _, _ := setupLocationServiceTest()
		profileID := uuid.New()

		mockStore.On("Clear", mock.Anything, profileID).Return(types.ErrStorageUnavailable).Once()

		err := service.ClearPreference(ctx, profileID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrStorageUnavailable))
	})
}

func TestLocationServiceImpl_SetViewMode(t *testing.T) {
	ctx := context.Background()

	t.Run("valid mode updates the session", func(t *testing.T) {
		service, _, _, _, sessions := setupLocationServiceTest()
		profileID := uuid.New()

		require.NoError(t, service.SetViewMode(ctx, profileID, types.ViewModeAll))
		assert.Equal(t, types.ViewModeAll, sessions.Get(profileID).Snapshot().ViewMode)
	})

	t.Run("invalid mode is rejected", func(t *testing.T) {
		service, mockStore, _, _, _ := setupLocationServiceTest()
		profileID := uuid.New()

		err := service.SetViewMode(ctx, profileID, types.ViewMode("everywhere"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrInvalidViewMode))
		// View mode never touches the preference store.
		mockStore.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
	})
}
