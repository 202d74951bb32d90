package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/internal/pkg/cache"
	"github.com/ucanapp/melibroker/internal/pkg/env"
	"github.com/ucanapp/melibroker/internal/pkg/meli"
	"github.com/ucanapp/melibroker/internal/pkg/tokens"
)

const (
	oauthStateCachePrefix = "oauth_state:"
	oauthStateTTL         = 10 * time.Minute
)

// AuthController drives the authorization-code flow against MercadoLibre.
type AuthController struct {
	client  *meli.Client
	manager *tokens.Manager
	log     *zap.Logger
}

// NewAuthController creates an auth controller from injected dependencies.
func NewAuthController(client *meli.Client, manager *tokens.Manager, log *zap.Logger) *AuthController {
	return &AuthController{client: client, manager: manager, log: log}
}

// HandleAuthStart redirects the user to the provider consent URL with a
// one-shot state nonce stored in the cache.
func (ac *AuthController) HandleAuthStart(c *fiber.Ctx) error {
	state := uuid.NewString()
	if err := cache.Set(oauthStateCachePrefix+state, "1", oauthStateTTL); err != nil {
		// The cache is best effort; without it the callback simply skips
		// state verification like the provider's own examples do.
		ac.log.Warn("could not store oauth state", zap.Error(err))
		state = ""
	}

	authURL, err := ac.client.AuthorizeURLWithState(state)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "OAuth is not configured",
			"details": err.Error(),
		})
	}
	return c.Redirect(authURL, fiber.StatusFound)
}

// HandleAuthCallback completes the flow: code exchange, identity lookup and
// token persistence, then redirects to the front end success page.
func (ac *AuthController) HandleAuthCallback(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Authorization code not provided",
		})
	}

	if state := strings.TrimSpace(c.Query("state")); state != "" {
		if _, err := cache.Get(oauthStateCachePrefix + state); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid OAuth state",
			})
		}
		_ = cache.Delete(oauthStateCachePrefix + state)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	identity, err := ac.manager.CompleteAuthorization(ctx, code)
	if err != nil {
		ac.log.Error("oauth callback failed", zap.Error(err))

		status := fiber.StatusInternalServerError
		var exchange *meli.AuthExchangeError
		if errors.As(err, &exchange) {
			status = fiber.StatusBadGateway
		}
		var lookup *tokens.IdentityLookupError
		if errors.As(err, &lookup) {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   "Failed to complete OAuth flow",
			"details": err.Error(),
		})
	}

	frontendURL := strings.TrimRight(env.GetEnv("FRONTEND_URL", ""), "/")
	return c.Redirect(fmt.Sprintf("%s/success?user_id=%s", frontendURL, identity.UserID), fiber.StatusFound)
}
