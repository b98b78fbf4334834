package main

import (
	"strings"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/cmd/storesvc/handlers"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func parseLogLevel(loglevel string) (log.Lvl, bool) {
	switch strings.ToLower(loglevel) {
	case "debug":
		return log.DEBUG, true
	case "info":
		return log.INFO, true
	case "warn", "":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	default:
		return log.WARN, false
	}
}

// BuildServer mounts handlers of the store service.
//
// authn authenticates requests other than /metrics.
func BuildServer(
	store *session.Store,
	orch handlers.Orchestrator,
	provider session.CredentialProvider,
	authn echo.MiddlewareFunc,
	gatherer prometheus.Gatherer,
	logger *log.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger = logger

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())

	// logging for server-side latency.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			meth := c.Request().Method
			path := c.Request().URL
			BEGIN := time.Now()
			c.Logger().Infof(
				"< request @[%s] %s %s", BEGIN, meth, path,
			)

			var err error

			defer func() {
				END := time.Now()
				c.Logger().Infof(
					"> response @[%s] status = %d (for request @[%s] %s %s) in %v / error = %+v",
					END, c.Response().Status, BEGIN, meth, path, END.Sub(BEGIN), err,
				)
			}()

			err = next(c)
			return err
		}
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("", authn)
	api.POST("/", handlers.PostSessionHandler(store))
	api.GET("/loggedIn/:sessionId", handlers.GetLoggedInHandler(store, "sessionId"))
	api.POST("/login/:sessionId", handlers.PostLoginHandler(store, provider, "sessionId"))
	api.GET("/copy/:sessionId", handlers.GetCopyHandler(orch, "sessionId"))
	api.DELETE("/copy/:sessionId", handlers.DeleteCopyHandler(orch, "sessionId"))
	api.GET("/progress/:sessionId", handlers.GetProgressHandler(orch, "sessionId"))
	api.PUT("/strategy/:code", handlers.PutStrategyHandler(orch, "code"))
	api.GET("/strategy", handlers.GetStrategyHandler(orch))

	return e
}
