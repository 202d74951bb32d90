package tokens

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/ucanapp/melibroker/app/models"
	"github.com/ucanapp/melibroker/app/repository"
	"github.com/ucanapp/melibroker/internal/pkg/meli"
)

var (
	// ErrTokenNotFound means no token record exists for the user; the user
	// has to run the authorization flow before any provider call can work.
	ErrTokenNotFound = errors.New("no token stored for user")

	// ErrRefreshFailed means the provider rejected the stored refresh token.
	// The token is consumed, rotated away or revoked; only a full
	// re-authorization can recover.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// IdentityLookupError reports that tokens were issued but the identity fetch
// failed, so nothing was persisted: a record without a known owner must not
// exist.
type IdentityLookupError struct {
	Err error
}

func (e *IdentityLookupError) Error() string {
	return fmt.Sprintf("identity lookup failed after token issuance: %v", e.Err)
}

func (e *IdentityLookupError) Unwrap() error {
	return e.Err
}

// AuthClient is the slice of the MercadoLibre client the manager depends on.
type AuthClient interface {
	ExchangeCode(ctx context.Context, code string) (*meli.TokenResponse, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*meli.TokenResponse, error)
	FetchIdentity(ctx context.Context, accessToken string) (*meli.Identity, error)
}

// Operation is a provider call made with a usable access token.
type Operation func(ctx context.Context, accessToken string) error

// Manager owns the per-user token lifecycle: it creates records on
// authorization, hands out usable access tokens and transparently refreshes
// them once when the provider rejects one.
type Manager struct {
	repo   repository.TokenRepository
	client AuthClient
	log    *zap.Logger

	// Concurrent 401s for the same user collapse into a single refresh
	// exchange; duplicate exchanges would invalidate each other because the
	// provider rotates refresh tokens on use.
	refreshGroup singleflight.Group
}

// NewManager creates a token lifecycle manager from injected dependencies.
func NewManager(repo repository.TokenRepository, client AuthClient, log *zap.Logger) *Manager {
	return &Manager{repo: repo, client: client, log: log}
}

// CompleteAuthorization exchanges an authorization code, resolves the owning
// user via the identity endpoint and upserts the token record. Tokens are not
// persisted when the identity fetch fails.
func (m *Manager) CompleteAuthorization(ctx context.Context, code string) (*meli.Identity, error) {
	tok, err := m.client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	identity, err := m.client.FetchIdentity(ctx, tok.AccessToken)
	if err != nil {
		return nil, &IdentityLookupError{Err: err}
	}

	record := &models.UserToken{
		UserID:       identity.UserID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        tok.Scope,
		ExpiresIn:    tok.ExpiresIn,
	}
	if err := m.repo.Upsert(record); err != nil {
		return nil, err
	}

	m.log.Info("token saved for user",
		zap.String("user_id", identity.UserID),
		zap.String("scope", tok.Scope),
	)
	return identity, nil
}

// GetToken returns the stored token record for a user.
func (m *Manager) GetToken(userID string) (*models.UserToken, error) {
	record, err := m.repo.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// WithValidToken runs op with the stored access token for userID. When op
// fails with a 401 the manager refreshes once and retries op a single time
// with the new token; any further failure, including a second 401, surfaces
// to the caller. This bounds every invocation to one refresh cycle so a
// provider that rejects even refreshed tokens cannot cause a retry loop.
// The returned flag reports whether a refresh happened.
func (m *Manager) WithValidToken(ctx context.Context, userID string, op Operation) (bool, error) {
	record, err := m.GetToken(userID)
	if err != nil {
		return false, err
	}

	err = op(ctx, record.AccessToken)
	if err == nil {
		return false, nil
	}

	var upstream *meli.UpstreamError
	if !errors.As(err, &upstream) || !upstream.IsUnauthorized() {
		return false, err
	}

	m.log.Info("access token rejected, attempting refresh", zap.String("user_id", userID))

	accessToken, err := m.Refresh(ctx, userID)
	if err != nil {
		return true, err
	}
	return true, op(ctx, accessToken)
}

// Refresh exchanges the stored refresh token for a new pair and persists it,
// returning the new access token. Concurrent calls for the same user share a
// single exchange.
func (m *Manager) Refresh(ctx context.Context, userID string) (string, error) {
	v, err, shared := m.refreshGroup.Do(userID, func() (interface{}, error) {
		record, err := m.GetToken(userID)
		if err != nil {
			return nil, err
		}

		tok, err := m.client.ExchangeRefreshToken(ctx, record.RefreshToken)
		if err != nil {
			var exchange *meli.AuthExchangeError
			if errors.As(err, &exchange) {
				return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
			}
			return nil, err
		}

		// Persist whichever refresh token came back; the old one is rotated
		// away and unusable.
		record = &models.UserToken{
			UserID:       userID,
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Scope:        tok.Scope,
			ExpiresIn:    tok.ExpiresIn,
		}
		if err := m.repo.Upsert(record); err != nil {
			return nil, err
		}

		m.log.Info("token refreshed for user", zap.String("user_id", userID))
		return tok.AccessToken, nil
	})
	if err != nil {
		m.log.Warn("token refresh failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return "", err
	}
	if shared {
		m.log.Debug("refresh coalesced with concurrent request", zap.String("user_id", userID))
	}
	return v.(string), nil
}
