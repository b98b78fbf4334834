package server_test

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GeRDI-Project/Store-Service-Library-Store/cmd/copyworker/server"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/distributor"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/cmp"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/utils/try"
)

// sourceServer serves files.
//
// /files/a.txt has Content-Length, /files/b.bin is chunked, /slow waits release. Others are 404.
func sourceServer(t *testing.T, release <-chan struct{}) *httptest.Server {
	t.Helper()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/a.txt":
			if r.Header.Get("Authorization") != "Bearer tkn" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, "hello")
		case "/files/b.bin":
			io.WriteString(w, "chunk-1;")
			w.(http.Flusher).Flush()
			io.WriteString(w, "chunk-2")
		case "/slow":
			<-release
			io.WriteString(w, "slow")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(svr.Close)
	return svr
}

func creds(username string) []byte {
	return []byte(fmt.Sprintf(`{"username": %q, "token": "tkn"}`, username))
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("copy does not finish")
	}
}

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCopier(t *testing.T) {
	t.Run("it copies sources into the directory of the owner", func(t *testing.T) {
		release := make(chan struct{})
		close(release)
		src := sourceServer(t, release)
		root := t.TempDir()

		testee := server.NewCopier(root, server.WithLogger(quiet()))
		done := try.To(testee.Begin(distributor.CopyRequest{
			Credentials: creds("alice"),
			TargetDir:   "/bookmarks/x",
			Sources: []string{
				src.URL + "/files/a.txt",
				src.URL + "/files/b.bin",
				src.URL + "/missing",
			},
		})).OrFatal(t)
		waitDone(t, done)

		for name, want := range map[string]string{
			"a.txt": "hello",
			"b.bin": "chunk-1;chunk-2",
		} {
			got := try.To(os.ReadFile(filepath.Join(root, "alice", "bookmarks", "x", name))).OrFatal(t)
			if string(got) != want {
				t.Errorf("%s: content = %q, want %q", name, got, want)
			}
		}
		if _, err := os.Stat(filepath.Join(root, "alice", "bookmarks", "x", "missing")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("failed item is left: %v", err)
		}

		expected := []session.ProgressReport{
			{FileName: "/files/a.txt", ProgressInPercent: 100, State: session.Finished},
			{FileName: "/files/b.bin", ProgressInPercent: 100, State: session.Finished},
			{FileName: "/missing", ProgressInPercent: 0, State: session.Error},
		}
		if actual := testee.Progress(); !cmp.SliceEq(expected, actual) {
			t.Errorf("progress:\n===actual===\n%+v\n===expected===\n%+v", actual, expected)
		}
		if !testee.Idle() {
			t.Error("copier is not idle after done")
		}
	})

	t.Run("target directory does not escape the directory of the owner", func(t *testing.T) {
		release := make(chan struct{})
		close(release)
		src := sourceServer(t, release)
		root := t.TempDir()

		testee := server.NewCopier(root, server.WithLogger(quiet()))
		done := try.To(testee.Begin(distributor.CopyRequest{
			Credentials: creds("alice"),
			TargetDir:   "../../etc",
			Sources:     []string{src.URL + "/files/a.txt"},
		})).OrFatal(t)
		waitDone(t, done)

		if _, err := os.Stat(filepath.Join(root, "alice", "etc", "a.txt")); err != nil {
			t.Errorf("file is not in the directory of the owner: %v", err)
		}
	})

	t.Run("it rejects another batch while busy", func(t *testing.T) {
		release := make(chan struct{})
		src := sourceServer(t, release)
		root := t.TempDir()

		testee := server.NewCopier(root, server.WithLogger(quiet()))
		done := try.To(testee.Begin(distributor.CopyRequest{
			Credentials: creds("alice"),
			TargetDir:   "/",
			Sources:     []string{src.URL + "/slow"},
		})).OrFatal(t)

		if testee.Idle() {
			t.Error("copier is idle while copying")
		}
		if _, err := testee.Begin(distributor.CopyRequest{
			Credentials: creds("bob"),
			TargetDir:   "/",
			Sources:     []string{src.URL + "/files/a.txt"},
		}); !errors.Is(err, server.ErrBusy) {
			t.Errorf("second batch: error = %v, want ErrBusy", err)
		}

		close(release)
		waitDone(t, done)
		if !testee.Idle() {
			t.Error("copier is not idle after done")
		}
		if _, err := os.Stat(filepath.Join(root, "bob")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("rejected batch is copied: %v", err)
		}
	})

	for name, testcase := range map[string]distributor.CopyRequest{
		"credentials without username": {
			Credentials: []byte(`{"token": "tkn"}`),
			Sources:     []string{"http://example.com/a"},
		},
		"broken credentials": {
			Credentials: []byte(`{`),
			Sources:     []string{"http://example.com/a"},
		},
		"username escaping the root": {
			Credentials: creds(".."),
			Sources:     []string{"http://example.com/a"},
		},
		"relative source": {
			Credentials: creds("alice"),
			Sources:     []string{"a.txt"},
		},
	} {
		t.Run("it rejects a request with "+name, func(t *testing.T) {
			testee := server.NewCopier(t.TempDir(), server.WithLogger(quiet()))
			if _, err := testee.Begin(testcase); !errors.Is(err, server.ErrInvalidRequest) {
				t.Errorf("error = %v, want ErrInvalidRequest", err)
			}
			if !testee.Idle() {
				t.Error("copier becomes busy")
			}
		})
	}
}
