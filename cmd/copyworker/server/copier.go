package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/distributor"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
)

var (
	ErrBusy           = errors.New("worker is busy")
	ErrInvalidRequest = errors.New("invalid copy request")
)

// Copier copies one batch of sources at a time into its root directory.
//
// Files go to <root>/<owner>/<targetDir>/<base name of the source>.
type Copier struct {
	root   string
	http   *http.Client
	base   context.Context
	logger *log.Logger

	mu    sync.Mutex
	busy  bool
	items []session.WorkItem
}

type CopierOption func(*Copier) *Copier

func WithHTTPClient(hc *http.Client) CopierOption {
	return func(c *Copier) *Copier {
		c.http = hc
		return c
	}
}

// WithBaseContext sets context of copies. When it is done, copies in progress are aborted.
func WithBaseContext(ctx context.Context) CopierOption {
	return func(c *Copier) *Copier {
		c.base = ctx
		return c
	}
}

func WithLogger(l *log.Logger) CopierOption {
	return func(c *Copier) *Copier {
		c.logger = l
		return c
	}
}

func NewCopier(root string, options ...CopierOption) *Copier {
	c := &Copier{
		root:   root,
		http:   &http.Client{},
		base:   context.Background(),
		logger: log.Default(),
		items:  []session.WorkItem{},
	}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

// Idle reports that no batches are being copied.
func (c *Copier) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.busy
}

// Progress of items in the current (or the last) batch.
func (c *Copier) Progress() []session.ProgressReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session.Reports(c.items)
}

// Begin accepts a batch and starts copying it in background.
//
// # Returns
//
// - <-chan struct{}: closed when all items of the batch are done, successfully or not.
//
// - error: ErrBusy when another batch is in progress. ErrInvalidRequest (wrapped) for malformed requests.
func (c *Copier) Begin(req distributor.CopyRequest) (<-chan struct{}, error) {
	creds, err := session.ParseTokenCredentials(req.Credentials)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if owner := creds.Owner(); owner == "." || owner == ".." || strings.ContainsAny(owner, `/\`) {
		return nil, fmt.Errorf("%w: bad username: %s", ErrInvalidRequest, owner)
	}

	items := make([]session.WorkItem, 0, len(req.Sources))
	for _, src := range req.Sources {
		item, err := session.NewWorkItem(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		items = append(items, item)
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy = true
	c.items = items
	c.mu.Unlock()

	dest := filepath.Join(c.root, creds.Owner(), filepath.Clean("/"+req.TargetDir))
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.busy = false
		}()
		for n := range items {
			if err := c.copy(n, creds, dest); err != nil {
				c.update(n, func(w *session.WorkItem) { w.SetStatus(session.Error) })
				c.logger.Printf("copy %s: %s", items[n].Source, err)
				continue
			}
			c.update(n, func(w *session.WorkItem) { w.SetStatus(session.Finished) })
		}
	}()
	return done, nil
}

func (c *Copier) update(n int, f func(*session.WorkItem)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(&c.items[n])
}

func fileName(item session.WorkItem) string {
	name := item.BaseName()
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "download"
	}
	return name
}

func (c *Copier) copy(n int, creds session.TokenCredentials, dir string) error {
	c.mu.Lock()
	item := c.items[n]
	c.mu.Unlock()

	c.update(n, func(w *session.WorkItem) { w.SetStatus(session.InProgress) })

	req, err := http.NewRequestWithContext(c.base, http.MethodGet, item.Source, nil)
	if err != nil {
		return err
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source responds status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	c.update(n, func(w *session.WorkItem) {
		if size < 0 {
			w.Size = session.SizeUnknown
			w.SetStatus(session.UnknownSize)
			return
		}
		w.Size = size
	})

	if err := os.MkdirAll(dir, os.FileMode(0o755)); err != nil {
		return err
	}
	dest := filepath.Join(dir, fileName(item))
	f, err := os.Create(dest)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, &countingReader{
		r: resp.Body,
		add: func(k int64) {
			c.update(n, func(w *session.WorkItem) { w.Transferred += k })
		},
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

type countingReader struct {
	r   io.Reader
	add func(int64)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if 0 < n {
		cr.add(int64(n))
	}
	return n, err
}

// decodeRequest reads a CopyRequest.
func decodeRequest(r io.Reader) (distributor.CopyRequest, error) {
	req := distributor.CopyRequest{}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return distributor.CopyRequest{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return req, nil
}
