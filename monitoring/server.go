package monitoring

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeOps runs the operational endpoints on a separate port from the API
// so the scrape surface is never exposed to session clients. healthCheck
// returning an error marks the process unhealthy.
func ServeOps(port string, healthCheck func() error) {
	e := echo.New()

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		if err := healthCheck(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	if err := http.ListenAndServe(":"+port, e); err != nil {
		log.Printf("ops server stopped: %v", err)
	}
}
