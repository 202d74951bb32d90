package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/internal/pkg/meli"
	"github.com/ucanapp/melibroker/internal/pkg/tokens"
)

func newAuthTestApp(client *meli.Client, authClient *stubAuthClient) *fiber.App {
	log := zap.NewNop()
	manager := tokens.NewManager(newStubTokenRepo(), authClient, log)
	ac := NewAuthController(client, manager, log)

	app := fiber.New()
	app.Get("/auth/meli", ac.HandleAuthStart)
	app.Get("/auth/callback", ac.HandleAuthCallback)
	return app
}

func TestHandleAuthStart_RedirectsToConsentURL(t *testing.T) {
	client := &meli.Client{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURI:  "https://broker.example/auth/callback",
		AuthorizeURL: "https://auth.mercadolibre.com.ar/authorization",
	}
	app := newAuthTestApp(client, &stubAuthClient{})

	req := httptest.NewRequest(http.MethodGet, "/auth/meli", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	assert.Contains(t, location, "auth.mercadolibre.com.ar/authorization")
	assert.Contains(t, location, "client_id=app-id")
	assert.Contains(t, location, "response_type=code")
}

func TestHandleAuthStart_Unconfigured(t *testing.T) {
	app := newAuthTestApp(&meli.Client{AuthorizeURL: "https://auth.mercadolibre.com.ar/authorization"}, &stubAuthClient{})

	req := httptest.NewRequest(http.MethodGet, "/auth/meli", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHandleAuthCallback_MissingCode(t *testing.T) {
	app := newAuthTestApp(&meli.Client{}, &stubAuthClient{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleAuthCallback_ExchangeRejected(t *testing.T) {
	// stubAuthClient without a canned token response rejects every code.
	app := newAuthTestApp(&meli.Client{}, &stubAuthClient{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=USED", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestHandleAuthCallback_Success(t *testing.T) {
	authClient := &stubAuthClient{
		tokenResp: &meli.TokenResponse{AccessToken: "a1", RefreshToken: "r1", Scope: "read", ExpiresIn: 21600},
		identity:  &meli.Identity{UserID: "999", Raw: []byte(`{"id":999}`)},
	}
	app := newAuthTestApp(&meli.Client{}, authClient)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=ABC123", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/success?user_id=999")
}
