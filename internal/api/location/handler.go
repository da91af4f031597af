package location

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/njoyaf/mboa-location/app/middleware"
	"github.com/njoyaf/mboa-location/internal/api"
	"github.com/njoyaf/mboa-location/internal/session"
	"github.com/njoyaf/mboa-location/internal/types"
)

type LocationHandler struct {
	LocationService LocationService
	sessions        *session.Manager
	cities          []types.City
	logger          *slog.Logger
}

// NewLocationHandler creates a new location handler instance.
func NewLocationHandler(locationService LocationService, sessions *session.Manager, cities []types.City, logger *slog.Logger) *LocationHandler {
	if logger == nil {
		panic("PANIC: Attempting to create LocationHandler with nil logger!")
	}
	return &LocationHandler{
		LocationService: locationService,
		sessions:        sessions,
		cities:          cities,
		logger:          logger,
	}
}

type updateLocationRequest struct {
	City string `json:"city"`
}

type viewModeRequest struct {
	ViewMode string `json:"viewMode"`
}

// GetLocation returns the profile's session snapshot, resolving the
// location first if this profile has never resolved one.
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LocationHandler").Start(r.Context(), "GetLocation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/location"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetLocation"))

	profileID, ok := appMiddleware.GetProfileIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Profile ID not found in context")
		span.SetStatus(codes.Error, "Profile ID not found in context")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Profile identification failed")
		return
	}

	st := h.sessions.Get(profileID)
	if snap := st.Snapshot(); snap.CurrentLocation == nil {
		// First contact for this profile: resolve synchronously. Resolve
		// is total, so the error can be discarded.
		if _, err := h.LocationService.Resolve(ctx, profileID, clientIP(r)); err != nil {
			l.ErrorContext(ctx, "Resolve returned unexpected error", slog.Any("error", err))
			span.RecordError(err)
		}
	}

	span.SetStatus(codes.Ok, "Location snapshot returned")
	api.WriteJSONResponse(w, r, http.StatusOK, st.Snapshot())
}

// UpdateLocation records an explicit city selection from the picker.
func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LocationHandler").Start(r.Context(), "UpdateLocation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/location"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "UpdateLocation"))

	profileID, ok := appMiddleware.GetProfileIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Profile ID not found in context")
		span.SetStatus(codes.Error, "Profile ID not found in context")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Profile identification failed")
		return
	}

	var params updateLocationRequest
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	if err := h.LocationService.UpdatePreference(ctx, profileID, params.City); err != nil {
		if errors.Is(err, types.ErrUnknownCity) {
			l.WarnContext(ctx, "Unknown city selected", slog.String("city", params.City))
			span.SetStatus(codes.Error, "Unknown city")
			api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown city %q", params.City))
			return
		}
		l.ErrorContext(ctx, "Failed to update location preference", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update location preference")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update location")
		return
	}

	span.SetStatus(codes.Ok, "Location updated")
	api.WriteJSONResponse(w, r, http.StatusOK, h.sessions.Get(profileID).Snapshot())
}

// RefreshLocation re-runs detection on explicit user request, bypassing
// the stored preference.
func (h *LocationHandler) RefreshLocation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LocationHandler").Start(r.Context(), "RefreshLocation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/location/refresh"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "RefreshLocation"))

	profileID, ok := appMiddleware.GetProfileIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Profile ID not found in context")
		span.SetStatus(codes.Error, "Profile ID not found in context")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Profile identification failed")
		return
	}

	if _, err := h.LocationService.Refresh(ctx, profileID, clientIP(r)); err != nil {
		l.ErrorContext(ctx, "Refresh returned unexpected error", slog.Any("error", err))
		span.RecordError(err)
	}

	span.SetStatus(codes.Ok, "Location refreshed")
	api.WriteJSONResponse(w, r, http.StatusOK, h.sessions.Get(profileID).Snapshot())
}

// UpdateViewMode switches how search results are scoped for this session.
func (h *LocationHandler) UpdateViewMode(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LocationHandler").Start(r.Context(), "UpdateViewMode", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/location/view-mode"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "UpdateViewMode"))

	profileID, ok := appMiddleware.GetProfileIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Profile ID not found in context")
		span.SetStatus(codes.Error, "Profile ID not found in context")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Profile identification failed")
		return
	}

	var params viewModeRequest
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid request format: %s", err.Error()))
		return
	}

	if err := h.LocationService.SetViewMode(ctx, profileID, types.ViewMode(params.ViewMode)); err != nil {
		l.WarnContext(ctx, "Invalid view mode", slog.String("viewMode", params.ViewMode))
		span.SetStatus(codes.Error, "Invalid view mode")
		api.ErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid view mode %q", params.ViewMode))
		return
	}

	span.SetStatus(codes.Ok, "View mode updated")
	api.WriteJSONResponse(w, r, http.StatusOK, h.sessions.Get(profileID).Snapshot())
}

// ClearLocation forgets the stored preference on explicit request. The
// session keeps its cached copy until the next resolution overwrites it.
func (h *LocationHandler) ClearLocation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("LocationHandler").Start(r.Context(), "ClearLocation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/location"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "ClearLocation"))

	profileID, ok := appMiddleware.GetProfileIDFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Profile ID not found in context")
		span.SetStatus(codes.Error, "Profile ID not found in context")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Profile identification failed")
		return
	}

	if err := h.LocationService.ClearPreference(ctx, profileID); err != nil {
		l.ErrorContext(ctx, "Failed to clear location preference", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to clear location preference")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to clear location")
		return
	}

	span.SetStatus(codes.Ok, "Location cleared")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ListCities enumerates the registry for the city picker.
func (h *LocationHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("LocationHandler").Start(r.Context(), "ListCities", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/cities"),
	))
	defer span.End()

	span.SetStatus(codes.Ok, "Cities listed")
	api.WriteJSONResponse(w, r, http.StatusOK, h.cities)
}

// clientIP strips the port RealIP leaves on RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
