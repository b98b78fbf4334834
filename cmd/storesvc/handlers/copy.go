package handlers

import (
	"context"
	"net/http"
	"strconv"

	apierr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/api/types/errors"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/orchestrator"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/scaling"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/labstack/echo/v4"
)

// Orchestrator is what handlers need from *orchestrator.Orchestrator.
type Orchestrator interface {
	Start(ctx context.Context, sessionId string, targetDir string) (*orchestrator.Job, error)
	Kill(ctx context.Context, sessionId string) (string, error)
	Progress(ctx context.Context, sessionId string) ([]session.ProgressReport, error)
	SetStrategy(code scaling.Code) scaling.Strategy
	Strategy() scaling.Strategy
}

var _ Orchestrator = &orchestrator.Orchestrator{}

// DefaultTargetDir is used when "dir" query is not given.
const DefaultTargetDir = "/"

type Killed struct {
	Message string `json:"message"`
}

type StrategyState struct {
	Code     int    `json:"code"`
	Strategy string `json:"strategy"`
}

// GetCopyHandler starts copying items of the session.
//
// Copy runs in background; it responds 202 as soon as workers are provisioned.
func GetCopyHandler(orch Orchestrator, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionId := c.Param(param)
		dir := c.QueryParam("dir")
		if dir == "" {
			dir = DefaultTargetDir
		}

		if _, err := orch.Start(c.Request().Context(), sessionId, dir); err != nil {
			return apierr.FromDomain(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

// DeleteCopyHandler kills the copy of the session and deletes its workers.
func DeleteCopyHandler(orch Orchestrator, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		msg, err := orch.Kill(c.Request().Context(), c.Param(param))
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, Killed{Message: msg})
	}
}

func GetProgressHandler(orch Orchestrator, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		reports, err := orch.Progress(c.Request().Context(), c.Param(param))
		if err != nil {
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, reports)
	}
}

func PutStrategyHandler(orch Orchestrator, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		code, err := strconv.Atoi(c.Param(param))
		if err != nil {
			return apierr.BadRequest("strategy code should be an integer.", err)
		}
		s := orch.SetStrategy(scaling.Code(code))
		return c.JSON(http.StatusOK, StrategyState{Code: int(s.Code()), Strategy: s.String()})
	}
}

func GetStrategyHandler(orch Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := orch.Strategy()
		return c.JSON(http.StatusOK, StrategyState{Code: int(s.Code()), Strategy: s.String()})
	}
}
