package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/njoyaf/mboa-location/app/observability/metrics"
	"github.com/njoyaf/mboa-location/internal/geo"
	"github.com/njoyaf/mboa-location/internal/position"
	"github.com/njoyaf/mboa-location/internal/prefs"
	"github.com/njoyaf/mboa-location/internal/session"
	"github.com/njoyaf/mboa-location/internal/types"
)

var _ LocationService = (*LocationServiceImpl)(nil)

// LocationService defines the business logic contract for location
// personalization.
type LocationService interface {
	// Resolve turns "no known location" into a concrete city name:
	// stored preference first, then detection, then the default city.
	// It is total: every branch terminates in a usable city name, so the
	// returned error is always nil under normal operation.
	Resolve(ctx context.Context, profileID uuid.UUID, clientIP string) (string, error)

	// UpdatePreference records an explicit user selection from the city
	// picker. No re-detection happens.
	UpdatePreference(ctx context.Context, profileID uuid.UUID, cityName string) error

	// Refresh re-runs detection even when a stored preference exists and
	// overwrites the stored value with the fresh result. Total like
	// Resolve.
	Refresh(ctx context.Context, profileID uuid.UUID, clientIP string) (string, error)

	// SetViewMode switches the session's result-scoping mode. Local
	// session state only, never persisted.
	SetViewMode(ctx context.Context, profileID uuid.UUID, mode types.ViewMode) error

	// ClearPreference forgets the stored location. Never called
	// automatically; the next Resolve re-runs detection. The session's
	// cached copy survives for the lifetime of the running instance.
	ClearPreference(ctx context.Context, profileID uuid.UUID) error
}

type LocationServiceImpl struct {
	logger   *slog.Logger
	store    prefs.Store
	source   position.Source
	sessions *session.Manager
	pusher   Pusher
	cities   []types.City
	fallback types.City

	// group collapses concurrent resolutions for the same profile into
	// one detection. The result is idempotent either way, so this is an
	// optimization, not a correctness requirement.
	group singleflight.Group
}

// NewLocationService creates a new location service instance. The cities
// slice must be non-empty; the first entry doubles as the fallback city.
func NewLocationService(store prefs.Store, source position.Source, sessions *session.Manager, pusher Pusher, cities []types.City, logger *slog.Logger) *LocationServiceImpl {
	if len(cities) == 0 {
		panic("location service requires a non-empty city registry")
	}
	return &LocationServiceImpl{
		logger:   logger,
		store:    store,
		source:   source,
		sessions: sessions,
		pusher:   pusher,
		cities:   cities,
		fallback: cities[0],
	}
}

func (s *LocationServiceImpl) Resolve(ctx context.Context, profileID uuid.UUID, clientIP string) (string, error) {
	ctx, span := otel.Tracer("LocationService").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("profile.id", profileID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Resolve"), slog.String("profileID", profileID.String()))

	city, _, _ := s.group.Do(profileID.String(), func() (interface{}, error) {
		// Stored preference is the common fast path: no position call.
		stored, err := s.store.Read(ctx, profileID)
		if err == nil {
			l.DebugContext(ctx, "Resolved from stored preference", slog.String("city", stored))
			span.SetAttributes(attribute.String("resolution.outcome", "stored"))
			metrics.Get().ResolutionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "stored")))
			s.sessions.Get(profileID).SetLocation(stored)
			return stored, nil
		}
		if !errors.Is(err, types.ErrNoPreference) {
			l.WarnContext(ctx, "Preference store unavailable, re-resolving", slog.Any("error", err))
			span.RecordError(err)
		}

		return s.detectAndPersist(ctx, l, span, profileID, clientIP), nil
	})

	span.SetStatus(codes.Ok, "Location resolved")
	return city.(string), nil
}

func (s *LocationServiceImpl) Refresh(ctx context.Context, profileID uuid.UUID, clientIP string) (string, error) {
	ctx, span := otel.Tracer("LocationService").Start(ctx, "Refresh", trace.WithAttributes(
		attribute.String("profile.id", profileID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Refresh"), slog.String("profileID", profileID.String()))
	l.DebugContext(ctx, "Explicit re-detection requested")

	city := s.detectAndPersist(ctx, l, span, profileID, clientIP)
	s.pusher.Push(ctx, profileID, city)

	span.SetStatus(codes.Ok, "Location refreshed")
	return city, nil
}

// detectAndPersist runs steps 2 and 3 of the resolution policy: acquire a
// position and pick the nearest registry city, or fall back to the default
// city. The result is persisted either way so a failed detection is not
// retried on every load, then mirrored into the session state.
func (s *LocationServiceImpl) detectAndPersist(ctx context.Context, l *slog.Logger, span trace.Span, profileID uuid.UUID, clientIP string) string {
	st := s.sessions.Get(profileID)
	st.SetDetecting(true)

	city := s.fallback.Name
	outcome := "fallback"

	start := time.Now()
	coord, err := s.source.Acquire(ctx, clientIP)
	metrics.Get().PositionDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		l.InfoContext(ctx, "Position unavailable, falling back to default city",
			slog.String("default", s.fallback.Name), slog.Any("error", err))
		span.RecordError(err)
		metrics.Get().PositionErrorsTotal.Add(ctx, 1)
	} else {
		nearest, err := geo.NearestCity(coord, s.cities)
		if err != nil {
			// Empty registry is a precondition violation; the fallback
			// still keeps resolution total.
			l.ErrorContext(ctx, "Nearest-city resolution failed", slog.Any("error", err))
			span.RecordError(err)
		} else {
			city = nearest.Name
			outcome = "detected"
			l.InfoContext(ctx, "Detected nearest city",
				slog.String("city", city),
				slog.Float64("lat", coord.Lat),
				slog.Float64("lon", coord.Lon))
		}
	}

	if err := s.store.Write(ctx, profileID, city); err != nil {
		// Best-effort: the session still carries the resolved value.
		l.WarnContext(ctx, "Failed to persist location preference", slog.Any("error", err))
		span.RecordError(err)
	}

	st.SetLocation(city)
	span.SetAttributes(attribute.String("resolution.outcome", outcome))
	metrics.Get().ResolutionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return city
}

func (s *LocationServiceImpl) UpdatePreference(ctx context.Context, profileID uuid.UUID, cityName string) error {
	ctx, span := otel.Tracer("LocationService").Start(ctx, "UpdatePreference", trace.WithAttributes(
		attribute.String("profile.id", profileID.String()),
		attribute.String("city.name", cityName),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdatePreference"), slog.String("profileID", profileID.String()))

	city, ok := s.lookup(cityName)
	if !ok {
		err := fmt.Errorf("%w: %q", types.ErrUnknownCity, cityName)
		l.WarnContext(ctx, "Rejected unknown city selection", slog.String("city", cityName))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Unknown city")
		return err
	}

	if err := s.store.Write(ctx, profileID, city.Name); err != nil {
		// Storage is best-effort; the selection still takes effect for
		// this session.
		l.WarnContext(ctx, "Failed to persist manual selection", slog.Any("error", err))
		span.RecordError(err)
	}

	s.sessions.Get(profileID).SetLocation(city.Name)
	s.pusher.Push(ctx, profileID, city.Name)

	l.InfoContext(ctx, "Location preference updated", slog.String("city", city.Name))
	span.SetStatus(codes.Ok, "Preference updated")
	return nil
}

func (s *LocationServiceImpl) SetViewMode(ctx context.Context, profileID uuid.UUID, mode types.ViewMode) error {
	_, span := otel.Tracer("LocationService").Start(ctx, "SetViewMode", trace.WithAttributes(
		attribute.String("profile.id", profileID.String()),
		attribute.String("view.mode", string(mode)),
	))
	defer span.End()

	if _, err := types.ParseViewMode(string(mode)); err != nil {
		span.SetStatus(codes.Error, "Invalid view mode")
		return err
	}

	s.sessions.Get(profileID).SetViewMode(mode)
	span.SetStatus(codes.Ok, "View mode updated")
	return nil
}

func (s *LocationServiceImpl) ClearPreference(ctx context.Context, profileID uuid.UUID) error {
	ctx, span := otel.Tracer("LocationService").Start(ctx, "ClearPreference", trace.WithAttributes(
		attribute.String("profile.id", profileID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ClearPreference"), slog.String("profileID", profileID.String()))

	if err := s.store.Clear(ctx, profileID); err != nil {
		l.ErrorContext(ctx, "Failed to clear location preference", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to clear location preference")
		return fmt.Errorf("error clearing location preference: %w", err)
	}

	l.InfoContext(ctx, "Location preference cleared")
	span.SetStatus(codes.Ok, "Preference cleared")
	return nil
}

func (s *LocationServiceImpl) lookup(name string) (types.City, bool) {
	for _, c := range s.cities {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return types.City{}, false
}
