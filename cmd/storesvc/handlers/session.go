package handlers

import (
	"errors"
	"io"
	"net/http"

	apierr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/api/types/errors"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/auth"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/labstack/echo/v4"
)

type SessionCreated struct {
	SessionId string `json:"sessionId"`
}

type LoginState struct {
	IsLoggedIn bool `json:"isLoggedIn"`
}

// max size of request bodies read by handlers.
const maxBody = 4 << 20

// PostSessionHandler accepts a task and opens a session for it.
//
// It responds 201 with SessionCreated, or 400 when the task is malformed.
func PostSessionHandler(store *session.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := session.ParseTask(io.LimitReader(c.Request().Body, maxBody))
		if err != nil {
			return apierr.BadRequest("send a task with userId, bookmarkId, bookmarkName and docs.", err)
		}
		s := store.Create(task)
		c.Logger().Infof("session %s: created for %d item(s)", s.ID(), len(task.Items))
		return c.JSON(http.StatusCreated, SessionCreated{SessionId: s.ID()})
	}
}

func GetLoggedInHandler(store *session.Store, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := store.Get(c.Param(param))
		if err != nil {
			c.Logger().Warnf("attempt to access non-existent session %s", c.Param(param))
			return apierr.FromDomain(err)
		}
		return c.JSON(http.StatusOK, LoginState{IsLoggedIn: s.IsLoggedIn()})
	}
}

// PostLoginHandler makes credentials for the authenticated user and binds them to the session.
//
// Credentials of a session are set once. Later logins are accepted, but they do not replace them.
func PostLoginHandler(store *session.Store, provider session.CredentialProvider, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := store.Get(c.Param(param))
		if err != nil {
			return apierr.FromDomain(err)
		}

		username := auth.Username(c)
		if username == "" {
			return apierr.Unauthorized("Login failed", errors.New("no authenticated user"))
		}

		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBody))
		if err != nil {
			return apierr.BadRequest("", err)
		}
		creds, err := provider.Login(c.Request().Context(), username, body)
		if err != nil {
			c.Logger().Warnf("session %s: login failed: %s", s.ID(), err)
			if errors.Is(err, session.ErrLoginFailed) {
				return apierr.Unauthorized("Login failed", err)
			}
			return apierr.InternalServerError(err)
		}
		if !s.SetCredentials(creds) {
			c.Logger().Infof("session %s: already logged in", s.ID())
		}
		return c.String(http.StatusOK, "Login Successful")
	}
}
