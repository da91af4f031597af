package location

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/njoyaf/mboa-location/app/observability/metrics"
	"github.com/njoyaf/mboa-location/internal/types"
)

// Pusher mirrors a resolved location to the remote profile store. Push is
// fire-and-forget: it must never raise to the caller, because guest
// profiles have no remote counterpart and local state is the source of
// truth regardless of sync outcome.
type Pusher interface {
	Push(ctx context.Context, profileID uuid.UUID, city string)
}

var _ Pusher = (*HTTPPusher)(nil)

// HTTPPusher performs an authenticated PUT against the marketplace profile
// API. Failures are counted and logged, then discarded: this method is the
// single designated suppression boundary for sync errors.
type HTTPPusher struct {
	logger     *slog.Logger
	client     *http.Client
	baseURL    string
	signingKey []byte
	issuer     string
}

type syncClaims struct {
	jwt.RegisteredClaims
}

func NewHTTPPusher(baseURL string, signingKey []byte, issuer string, timeout time.Duration, logger *slog.Logger) *HTTPPusher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPusher{
		logger:     logger,
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		signingKey: signingKey,
		issuer:     issuer,
	}
}

func (p *HTTPPusher) Push(ctx context.Context, profileID uuid.UUID, city string) {
	metrics.Get().SyncPushesTotal.Add(ctx, 1)

	// Detach from the request context: callers must stay responsive and a
	// finished request must not cancel an in-flight push.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
		defer cancel()

		if err := p.push(ctx, profileID, city); err != nil {
			metrics.Get().SyncFailuresTotal.Add(ctx, 1)
			p.logger.DebugContext(ctx, "Remote location sync failed, ignoring",
				slog.String("profileID", profileID.String()),
				slog.String("city", city),
				slog.Any("error", err))
		}
	}()
}

// push does the actual network call and reports failure explicitly, so the
// swallow in Push stays an auditable policy rather than an empty catch.
func (p *HTTPPusher) push(ctx context.Context, profileID uuid.UUID, city string) error {
	token, err := p.mintToken(profileID)
	if err != nil {
		return fmt.Errorf("%w: minting token: %w", types.ErrSyncFailed, err)
	}

	reqURL := fmt.Sprintf("%s/users/location?location=%s", p.baseURL, url.QueryEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", types.ErrSyncFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	// Response body is ignored beyond the status class.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", types.ErrSyncFailed, resp.StatusCode)
	}
	return nil
}

func (p *HTTPPusher) mintToken(profileID uuid.UUID) (string, error) {
	now := time.Now()
	claims := syncClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profileID.String(),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Minute)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
}
