package appMiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const ProfileIDKey contextKey = "profileID"

// ProfileCookieName scopes the location preference the way a browser
// profile would: one durable identifier per client.
const ProfileCookieName = "mboa_profile"

// ProfileHeaderName lets non-browser clients carry their profile ID
// explicitly instead of via cookie.
const ProfileHeaderName = "X-Profile-ID"

// ProfileID identifies the calling profile, minting a new identifier on
// first contact. Precedence: header, then cookie, then a fresh UUID set
// back as a cookie.
func ProfileID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var profileID uuid.UUID

		if raw := r.Header.Get(ProfileHeaderName); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				profileID = id
			}
		}

		if profileID == uuid.Nil {
			if cookie, err := r.Cookie(ProfileCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					profileID = id
				}
			}
		}

		if profileID == uuid.Nil {
			profileID = uuid.New()
			http.SetCookie(w, &http.Cookie{
				Name:     ProfileCookieName,
				Value:    profileID.String(),
				Path:     "/",
				Expires:  time.Now().Add(365 * 24 * time.Hour),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), ProfileIDKey, profileID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetProfileIDFromContext retrieves the profile ID set by ProfileID.
func GetProfileIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	profileID, ok := ctx.Value(ProfileIDKey).(uuid.UUID)
	return profileID, ok
}
