// Package router assembles the echo server: middleware chain, health and
// metrics endpoints, and the order API group.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/pttech/commerce/internal/handler"
	"github.com/pttech/commerce/internal/middleware"
)

// Deps carries everything the router mounts.
type Deps struct {
	Orders  *handler.OrderHandler
	Catalog *handler.CatalogHandler
	Metrics *middleware.Metrics
	Logger  zerolog.Logger
}

// New builds the echo instance with the full middleware chain and routes.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
		e.GET("/metrics", deps.Metrics.Handler())
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	deps.Orders.Register(e.Group("/api/orders"))
	if deps.Catalog != nil {
		deps.Catalog.Register(e.Group("/api/catalog"))
	}

	return e
}
