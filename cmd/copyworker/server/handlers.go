package server

import (
	"errors"
	"io"
	"net/http"

	apierr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/api/types/errors"
	"github.com/labstack/echo/v4"
)

const maxBody = 4 << 20

// PostCopyHandler accepts a batch. It responds 202 once the worker has become busy.
func PostCopyHandler(cp *Copier) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decodeRequest(io.LimitReader(c.Request().Body, maxBody))
		if err != nil {
			return apierr.BadRequest("send credentials, targetDir and sources.", err)
		}
		if _, err := cp.Begin(req); err != nil {
			if errors.Is(err, ErrBusy) {
				return apierr.Conflict(
					"worker is busy", apierr.WithAdvice("wait until GET /taskDone responds 200."),
				)
			}
			return apierr.BadRequest("", err)
		}
		c.Logger().Infof("accept %d item(s)", len(req.Sources))
		return c.NoContent(http.StatusAccepted)
	}
}

func GetTaskDoneHandler(cp *Copier) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !cp.Idle() {
			return c.String(http.StatusServiceUnavailable, "busy")
		}
		return c.String(http.StatusOK, "done")
	}
}

func GetProgressHandler(cp *Copier) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, cp.Progress())
	}
}
