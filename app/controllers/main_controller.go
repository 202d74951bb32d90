package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleIndex reports service status and the available endpoints
func HandleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":   "MercadoLibre OAuth API Server",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": fiber.Map{
			"auth":     "/auth/meli",
			"callback": "/auth/callback",
			"user":     "/me/:user_id",
			"webhook":  "/webhook/meli",
			"events":   "/webhook/events/:user_id",
		},
	})
}

// HandleNotFound is the JSON fallback for unknown routes
func HandleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":     "Route not found",
		"path":      c.OriginalURL(),
		"method":    c.Method(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
