package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/app/models"
	"github.com/ucanapp/melibroker/internal/pkg/meli"
	"github.com/ucanapp/melibroker/internal/pkg/tokens"
)

func newUserTestApp(tokenRepo *stubTokenRepo, client *stubAuthClient) *fiber.App {
	log := zap.NewNop()
	manager := tokens.NewManager(tokenRepo, client, log)
	uc := NewUserController(manager, client, log)

	app := fiber.New()
	app.Get("/me/:user_id", uc.HandleGetUser)
	return app
}

func TestHandleGetUser_NotFound(t *testing.T) {
	app := newUserTestApp(newStubTokenRepo(), &stubAuthClient{})

	req := httptest.NewRequest(http.MethodGet, "/me/999", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "User not found", out["error"])
}

func TestHandleGetUser_Success(t *testing.T) {
	tokenRepo := newStubTokenRepo()
	require.NoError(t, tokenRepo.Upsert(&models.UserToken{UserID: "999", AccessToken: "a1", RefreshToken: "r1", Scope: "read"}))

	client := &stubAuthClient{
		identity: &meli.Identity{
			UserID:   "999",
			Nickname: "SELLER999",
			Raw:      []byte(`{"id":999,"nickname":"SELLER999"}`),
		},
	}
	app := newUserTestApp(tokenRepo, client)

	req := httptest.NewRequest(http.MethodGet, "/me/999", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Success   bool            `json:"success"`
		User      json.RawMessage `json:"user"`
		TokenInfo struct {
			Scope     string `json:"scope"`
			Refreshed bool   `json:"refreshed"`
		} `json:"token_info"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.JSONEq(t, `{"id":999,"nickname":"SELLER999"}`, string(out.User))
	assert.Equal(t, "read", out.TokenInfo.Scope)
	assert.False(t, out.TokenInfo.Refreshed)
}

func TestHandleGetUser_RefreshFails(t *testing.T) {
	tokenRepo := newStubTokenRepo()
	require.NoError(t, tokenRepo.Upsert(&models.UserToken{UserID: "888", AccessToken: "stale", RefreshToken: "revoked"}))

	// Identity fetch keeps returning 401; the stub refresh exchange rejects
	// the refresh token, which must surface as 401 to the caller.
	client := &stubAuthClient{
		fetchErr: &meli.UpstreamError{Status: http.StatusUnauthorized},
	}
	app := newUserTestApp(tokenRepo, client)

	req := httptest.NewRequest(http.MethodGet, "/me/888", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Authentication failed", out["error"])
}

func TestHandleGetUser_NonAuthUpstreamFailure(t *testing.T) {
	tokenRepo := newStubTokenRepo()
	require.NoError(t, tokenRepo.Upsert(&models.UserToken{UserID: "777", AccessToken: "a1", RefreshToken: "r1"}))

	client := &stubAuthClient{
		fetchErr: &meli.UpstreamError{Status: http.StatusInternalServerError},
	}
	app := newUserTestApp(tokenRepo, client)

	req := httptest.NewRequest(http.MethodGet, "/me/777", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
