package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ucanapp/melibroker/app/controllers"
	"github.com/ucanapp/melibroker/app/repository"
	"github.com/ucanapp/melibroker/internal/pkg/database"
	"github.com/ucanapp/melibroker/internal/pkg/logging"
	"github.com/ucanapp/melibroker/internal/pkg/meli"
	"github.com/ucanapp/melibroker/internal/pkg/tokens"
	"github.com/ucanapp/melibroker/internal/pkg/webhook"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	log := logging.GetLogger()
	factory := repository.NewFactory(database.GetDB())

	client := meli.NewClientFromEnv()
	manager := tokens.NewManager(factory.GetTokenRepository(), client, log)
	ingestor := webhook.NewIngestor(
		factory.GetWebhookEventRepository(),
		manager,
		client,
		webhook.NewRouter(log),
		log,
	)

	authController := controllers.NewAuthController(client, manager, log)
	userController := controllers.NewUserController(manager, client, log)
	webhookController := controllers.NewWebhookController(ingestor, factory.GetWebhookEventRepository(), log)

	app.Get("/", controllers.HandleIndex)

	auth := app.Group("/auth")
	auth.Get("/meli", authController.HandleAuthStart)
	auth.Get("/callback", authController.HandleAuthCallback)

	app.Get("/me/:user_id", userController.HandleGetUser)

	wh := app.Group("/webhook")
	wh.Post("/meli", webhookController.HandlePostWebhook)
	wh.Get("/events/:user_id", limiter.New(), webhookController.HandleListEvents)
	wh.Get("/stats", limiter.New(), webhookController.HandleGetStats)

	// JSON 404 for everything else
	app.Use(controllers.HandleNotFound)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
