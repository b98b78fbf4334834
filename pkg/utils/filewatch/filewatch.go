// filewatch cancels contexts on file modification.
package filewatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrModified is the cause of contexts cancelled by modification.
type ErrModified struct {
	Path string
	Op   fsnotify.Op
}

func (e *ErrModified) Error() string {
	return fmt.Sprintf("%s is updated (%s)", e.Path, e.Op)
}

// k8s swaps this symlink when a mounted ConfigMap is updated.
const configMapData = "..data"

// UntilModified returns a context that is cancelled
// when one of targets is modified (= written, created, removed, or renamed).
// Changing mode is not a modification.
//
// # Args
//
// - ctx: context.Context
//
// - targets ...string: files or directories to be watched.
// For a file, its parent directory is watched and events on the file are picked,
// so replacing the file by rename is also detected.
// For a directory, events on any entries of the directory are picked.
//
// # Returns
//
// - context.Context: context cancelled with *ErrModified as its cause.
//
// - context.CancelFunc: cancel function.
//
// - error: error caused when it fails to start watching.
// If error is not nil, both of the context and the cancel function are nil.
func UntilModified(ctx context.Context, targets ...string) (context.Context, context.CancelFunc, error) {
	files := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, t := range targets {
		t = filepath.Clean(t)
		st, err := os.Stat(t)
		if err != nil {
			return nil, nil, err
		}
		if st.IsDir() {
			dirs[t] = struct{}{}
		} else {
			files[t] = struct{}{}
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, nil, err
		}
	}
	for f := range files {
		d := filepath.Dir(f)
		if _, ok := dirs[d]; ok {
			continue
		}
		if err := w.Add(d); err != nil {
			w.Close()
			return nil, nil, err
		}
	}

	picks := func(ev fsnotify.Event) bool {
		if ev.Op == fsnotify.Chmod {
			return false
		}
		name := filepath.Clean(ev.Name)
		dir := filepath.Dir(name)
		if _, ok := dirs[dir]; ok {
			return true
		}
		if _, ok := files[name]; ok {
			return true
		}
		if filepath.Base(name) != configMapData {
			return false
		}
		for f := range files {
			if filepath.Dir(f) == dir {
				return true
			}
		}
		return false
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if picks(ev) {
					cancel(&ErrModified{Path: ev.Name, Op: ev.Op})
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("filewatch: %w", err))
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
