package api

import (
	v1 "github.com/relaymsg/gateway/internal/api/v1"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, handler *v1.Handler) {
	app.Get("/ping", handler.Pong)

	app.Post("/v1/messages", handler.CreateMessage)
	app.Post("/v1/messages/batch", handler.CreateBatch)
	app.Get("/v1/messages/:id", handler.GetMessage)

	app.Post("/v1/webhooks/:provider", handler.IngestWebhook)

	app.Get("/v1/metrics/summary", handler.MetricsSummary)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
