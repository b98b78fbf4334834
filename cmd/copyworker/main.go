package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/GeRDI-Project/Store-Service-Library-Store/cmd/copyworker/server"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/buildtime"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/try"
)

func main() {
	proot := flag.String("root", "/data", "path to directory where files are copied into")
	pport := flag.Int("port", 5679, "port number where the worker serves on")
	pversion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *pversion {
		fmt.Println(buildtime.VersionString())
		return
	}

	logger := log.Default()

	root := try.To(filepath.Abs(*proot)).OrFatal(logger)
	if fi, err := os.Stat(root); err != nil {
		logger.Fatalf(`given path "%s" is something wrong: %+v`, root, err)
	} else if !fi.IsDir() {
		logger.Fatalf(`given path "%s" is not directory`, root)
	}
	port := *pport

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cp := server.NewCopier(root, server.WithBaseContext(ctx), server.WithLogger(logger))
	s := server.Start(ctx, server.OnPort(port), cp)
	logger.Printf("starting copy worker on port %d, copying into %s.", port, root)

	select {
	case <-ctx.Done():
		logger.Println("server stops by signal")
	case err := <-s.ServerStop:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server stops by error:\n%+v", err)
		}
		logger.Println("server stops...")
		return
	}
	logger.Println("bye")
}
