package router

import (
	"realtime_chat_service/internal/api/handlers"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// RegisterRoutes 注册 REST 路由
// @title Realtime Chat Service API
// @version 1.0
// @description API documentation for Realtime Chat Service
// @host localhost:8080
// @BasePath /
func RegisterRoutes(app *fiber.App, chatHandler *handlers.ChatHandler, stats handlers.GatewayStats) {
	app.Get("/swagger/*", swagger.HandlerDefault)
	app.Get("/", handlers.ConnectCheck)
	app.Post("/debug", handlers.DebugLogFlag)
	app.Get("/stats", handlers.Stats(stats))

	chatRoutes := app.Group("/api/chat", middlewares.JWTMiddleware())
	chatRoutes.Get("/threads/", chatHandler.ListThreads)
	chatRoutes.Post("/threads/", chatHandler.CreateThread)
	chatRoutes.Get("/threads/:id/messages/", chatHandler.ListMessages)
	chatRoutes.Post("/threads/:id/messages/", chatHandler.SendMessage)
	chatRoutes.Get("/users/:id/presence", chatHandler.Presence)
}
