package middleware

import (
	"strconv"
	"time"

	"firecontest-backend/utils/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestLogger logs every request and records its latency in hist, which
// may be nil. The route label is the registered pattern, not the raw path.
func RequestLogger(hist *prometheus.HistogramVec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		// Render the error here so the logged status is the one the client sees.
		if err != nil {
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		route := c.Route().Path
		if hist != nil {
			hist.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Observe(elapsed.Seconds())
		}
		logger.Log.Infow("request",
			"method", c.Method(),
			"path", c.Path(),
			"route", route,
			"status", status,
			"duration", elapsed,
			"ip", c.IP(),
		)
		return nil
	}
}
