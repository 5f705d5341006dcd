package handlers

import (
	"strconv"

	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ConnectCheck check api connect start
// @Summary Check chat service status
// @Description Returns a simple confirmation message
// @Tags Shared
// @Success 200 {string} string "chat service start!"
// @Router / [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("chat service start!")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Description Enable or disable debug logging at runtime
// @Tags Shared
// @Param status query bool true "Debug status"
// @Success 200 {object} DebugResponse
// @Failure 400 {string} string "Invalid status value"
// @Router /debug [post]
func DebugLogFlag(c *fiber.Ctx) error {
	status, err := strconv.ParseBool(c.Query("status"))
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Log.SetDebugMode(status)
	logger.Log.Info("debug mode changed", zap.Bool("debug", status))
	return c.JSON(DebugResponse{Debug: status})
}

// DebugResponse body of POST /debug
type DebugResponse struct {
	Debug bool `json:"debug"`
}

// GatewayStats live connection counters of this node
type GatewayStats interface {
	Count() int
	OnlineUsers() []string
}

// StatsResponse body of GET /stats
type StatsResponse struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"online_users"`
}

// Stats connection counters of this node
// @Summary Gateway statistics
// @Description Open websocket connections and distinct online users on this node
// @Tags Shared
// @Produce json
// @Success 200 {object} StatsResponse
// @Router /stats [get]
func Stats(stats GatewayStats) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(StatsResponse{
			Connections: stats.Count(),
			OnlineUsers: len(stats.OnlineUsers()),
		})
	}
}
