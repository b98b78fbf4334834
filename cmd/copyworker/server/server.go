package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/distributor"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/retry"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type server struct {
	silent         bool
	gracefulPeriod time.Duration
}

type Option func(*server) *server

// set graceful period for shutdown.
//
// GracefulPeriod is 30 seconds by default.
func WithGracefulPeriod(d time.Duration) Option {
	return func(s *server) *server {
		s.gracefulPeriod = d
		return s
	}
}

func Silent() Option {
	return func(s *server) *server {
		s.silent = true
		return s
	}
}

// Build mounts handlers of the worker protocol.
func Build(cp *Copier, opts ...Option) *echo.Echo {
	conf := server{gracefulPeriod: 30 * time.Second}
	for _, opt := range opts {
		conf = *opt(&conf)
	}

	e := echo.New()
	e.HideBanner = true
	if conf.silent {
		e.HidePort = true
	}
	e.Use(middleware.Recover())

	e.POST(distributor.PathCopy, PostCopyHandler(cp))
	e.GET(distributor.PathTaskDone, GetTaskDoneHandler(cp))
	e.GET(distributor.PathGetProgress, GetProgressHandler(cp))
	return e
}

type Starter func(*echo.Echo) error

func OnPort(p int) Starter {
	return func(e *echo.Echo) error {
		return e.Start(fmt.Sprintf(":%d", p))
	}
}

// listen on localhost only.
func OnLocalPort(p int) Starter {
	return func(e *echo.Echo) error {
		return e.Start(fmt.Sprintf("localhost:%d", p))
	}
}

type Server struct {
	Port       int
	ServerStop <-chan error
}

// Start serves the worker protocol until ctx is done.
func Start(ctx context.Context, starter Starter, cp *Copier, opts ...Option) Server {
	conf := server{gracefulPeriod: 30 * time.Second}
	for _, opt := range opts {
		conf = *opt(&conf)
	}
	e := Build(cp, opts...)

	go func() {
		<-ctx.Done()
		if 0 < conf.gracefulPeriod {
			_ctx, _cancel := context.WithTimeout(context.Background(), conf.gracefulPeriod)
			defer _cancel()
			e.Shutdown(_ctx) // try to shutdown gracefully
		}
		e.Close() // close forcefully
	}()

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- starter(e)
	}()

	port, _ := retry.Blocking[int](
		ctx, retry.StaticBackoff(100*time.Millisecond),
		func(context.Context) (int, error) {
			if addr := e.ListenerAddr(); addr != nil {
				return addr.(*net.TCPAddr).Port, nil
			}
			return 0, retry.ErrRetry
		},
	)
	return Server{Port: port, ServerStop: ch}
}
