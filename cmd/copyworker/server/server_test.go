package server_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/cmd/copyworker/server"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/distributor"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/cmp"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/try"
)

func TestHandlers(t *testing.T) {
	release := make(chan struct{})
	src := sourceServer(t, release)
	root := t.TempDir()

	cp := server.NewCopier(root, server.WithLogger(quiet()))
	e := server.Build(cp, server.Silent())

	serve := func(method string, target string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve(http.MethodGet, "/taskDone", ""); rec.Code != http.StatusOK {
		t.Errorf("taskDone before copy: %d", rec.Code)
	}
	if rec := serve(http.MethodGet, "/getProgress", ""); strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("progress before copy: %s", rec.Body.String())
	}
	if rec := serve(http.MethodPost, "/copy", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("broken request: %d", rec.Code)
	}

	body := fmt.Sprintf(
		`{"credentials": {"username": "alice"}, "targetDir": "/", "sources": [%q]}`,
		src.URL+"/slow",
	)
	if rec := serve(http.MethodPost, "/copy", body); rec.Code != http.StatusAccepted {
		t.Fatalf("copy: %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(http.MethodGet, "/taskDone", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("taskDone while copying: %d", rec.Code)
	}
	if rec := serve(http.MethodPost, "/copy", body); rec.Code != http.StatusConflict {
		t.Errorf("copy while copying: %d", rec.Code)
	}

	close(release)

	deadline := time.Now().Add(10 * time.Second)
	for serve(http.MethodGet, "/taskDone", "").Code != http.StatusOK {
		if time.Now().After(deadline) {
			t.Fatal("worker does not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := serve(http.MethodGet, "/getProgress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("getProgress: %d", rec.Code)
	}
	want := `[{"fileName":"/slow","progressInPercent":100,"state":"FINISHED"}]`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("getProgress:\n got %s\nwant %s", got, want)
	}
}

func TestServerWithDistributor(t *testing.T) {
	release := make(chan struct{})
	close(release)
	src := sourceServer(t, release)
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cp := server.NewCopier(root, server.WithLogger(quiet()), server.WithBaseContext(ctx))
	svr := server.Start(
		ctx, server.OnLocalPort(0), cp,
		server.Silent(), server.WithGracefulPeriod(0),
	)
	addr := fmt.Sprintf("localhost:%d", svr.Port)

	dist := distributor.New()
	if !dist.PollReady(ctx, addr) {
		t.Fatal("worker is not ready")
	}

	item := try.To(session.NewWorkItem(src.URL + "/files/a.txt")).OrFatal(t)
	c := session.TokenCredentials{Username: "alice", Token: "tkn"}
	if !dist.Dispatch(ctx, addr, c, "/d", []session.WorkItem{item}) {
		t.Fatal("dispatch failed")
	}

	deadline := time.Now().Add(10 * time.Second)
	for !dist.PollReady(ctx, addr) {
		if time.Now().After(deadline) {
			t.Fatal("worker does not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	reports := try.To(dist.FetchProgress(ctx, []string{addr})).OrFatal(t)
	expected := []session.ProgressReport{
		{FileName: "/files/a.txt", ProgressInPercent: 100, State: session.Finished},
	}
	if !cmp.SliceEq(expected, reports) {
		t.Errorf("progress:\n===actual===\n%+v\n===expected===\n%+v", reports, expected)
	}
	if got := try.To(os.ReadFile(filepath.Join(root, "alice", "d", "a.txt"))).OrFatal(t); string(got) != "hello" {
		t.Errorf("content = %q", got)
	}

	cancel()
	select {
	case err := <-svr.ServerStop:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server stops by unexpected error: %+v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("server has not stopped")
	}
}
