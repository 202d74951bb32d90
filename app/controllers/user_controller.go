package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/internal/pkg/cache"
	"github.com/ucanapp/melibroker/internal/pkg/meli"
	"github.com/ucanapp/melibroker/internal/pkg/tokens"
)

const (
	identityCachePrefix = "identity:"
	identityCacheTTL    = 60 * time.Second
)

// IdentityClient is the slice of the provider client the user controller
// needs to load the /users/me payload.
type IdentityClient interface {
	FetchIdentity(ctx context.Context, accessToken string) (*meli.Identity, error)
}

// UserController serves stored-identity lookups backed by the token
// lifecycle manager.
type UserController struct {
	manager *tokens.Manager
	client  IdentityClient
	log     *zap.Logger
}

// NewUserController creates a user controller from injected dependencies.
func NewUserController(manager *tokens.Manager, client IdentityClient, log *zap.Logger) *UserController {
	return &UserController{manager: manager, client: client, log: log}
}

// HandleGetUser returns the provider identity payload for a known user,
// transparently refreshing the access token once on a 401.
func (uc *UserController) HandleGetUser(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	record, err := uc.manager.GetToken(userID)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "User not found",
				"message": "No authentication token found for this user",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to get user data",
			"details": err.Error(),
		})
	}

	// Serve a recent identity payload from cache without touching the
	// provider.
	if cached, err := cache.Get(identityCachePrefix + userID); err == nil && cached != "" {
		return c.JSON(fiber.Map{
			"success": true,
			"user":    json.RawMessage(cached),
			"token_info": fiber.Map{
				"scope":      record.Scope,
				"updated_at": record.UpdatedAt,
			},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var identity *meli.Identity
	refreshed, err := uc.manager.WithValidToken(ctx, userID, func(ctx context.Context, accessToken string) error {
		id, err := uc.client.FetchIdentity(ctx, accessToken)
		if err != nil {
			return err
		}
		identity = id
		return nil
	})
	if err != nil {
		if refreshed || errors.Is(err, tokens.ErrRefreshFailed) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Authentication failed",
				"message": "Token expired and refresh failed. Please re-authenticate.",
				"details": err.Error(),
			})
		}
		uc.log.Error("identity fetch failed", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to get user data",
			"details": err.Error(),
		})
	}

	if err := cache.Set(identityCachePrefix+userID, string(identity.Raw), identityCacheTTL); err != nil {
		uc.log.Warn("could not cache identity payload", zap.Error(err))
	}

	tokenInfo := fiber.Map{
		"scope":      record.Scope,
		"updated_at": record.UpdatedAt,
	}
	if refreshed {
		tokenInfo["updated_at"] = time.Now()
		tokenInfo["refreshed"] = true
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"user":       json.RawMessage(identity.Raw),
		"token_info": tokenInfo,
	})
}
