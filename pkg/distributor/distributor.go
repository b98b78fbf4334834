// distributor hands partitions of a copy job to workers, and watches them.
//
// Workers speak a small HTTP protocol:
//
//   - GET  /taskDone    : 200 when the worker is idle, otherwise busy.
//   - POST /copy        : CopyRequest. Starts copying.
//   - GET  /getProgress : JSON array of session.ProgressReport .
package distributor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	derr "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/domain/errors"
	xe "github.com/GeRDI-Project/Store-Service-Library-Store/pkg/errors"
	"github.com/GeRDI-Project/Store-Service-Library-Store/pkg/session"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"
)

const (
	PathTaskDone    = "/taskDone"
	PathCopy        = "/copy"
	PathGetProgress = "/getProgress"
)

// body of POST /copy
type CopyRequest struct {
	Credentials json.RawMessage `json:"credentials"`
	TargetDir   string          `json:"targetDir"`
	Sources     []string        `json:"sources"`
}

// Partition assigns items to workers in round robin.
//
// Worker i (0-origin) receives items at i, i+workers, i+2*workers, ... .
// When workers exceeds len(items), trailing partitions are empty.
// workers < 1 is treated as 1.
func Partition[T any](items []T, workers int) [][]T {
	workers = max(1, workers)
	parts := make([][]T, workers)
	for i := range parts {
		parts[i] = make([]T, 0, (len(items)+workers-1-i)/workers)
	}
	for n, item := range items {
		parts[n%workers] = append(parts[n%workers], item)
	}
	return parts
}

type Client struct {
	http   *http.Client
	logger *log.Logger
}

type Option func(*Client) *Client

// WithHTTPClient replaces the http.Client talking to workers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) *Client {
		c.http = hc
		return c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) *Client {
		c.logger = l
		return c
	}
}

// DefaultRequestTimeout is the timeout of a request to a worker.
const DefaultRequestTimeout = 10 * time.Second

func New(options ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: DefaultRequestTimeout},
		logger: log.New("distributor"),
	}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

func endpoint(addr string, path string) string {
	return "http://" + addr + path
}

// PollReady asks the worker whether it has no active task.
//
// It returns true only when the worker answers 200. Any failure means "not ready".
func (c *Client) PollReady(ctx context.Context, addr string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, PathTaskDone), nil)
	if err != nil {
		c.logger.Debugf("probe %s: %s", addr, err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debugf("probe %s: %s", addr, err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Dispatch sends a partition to the worker.
//
// It returns true once the worker accepts the request. The response is drained in background
// and its status is not interpreted.
//
// It returns false when creds is nil or on any transport error.
func (c *Client) Dispatch(ctx context.Context, addr string, creds session.Credentials, targetDir string, items []session.WorkItem) bool {
	if creds == nil {
		c.logger.Warnf("dispatch to %s: no credentials", addr)
		return false
	}
	rawCreds, err := creds.MarshalJSON()
	if err != nil {
		c.logger.Warnf("dispatch to %s: %s", addr, err)
		return false
	}

	sources := make([]string, 0, len(items))
	for _, i := range items {
		sources = append(sources, i.Source)
	}
	body, err := json.Marshal(CopyRequest{
		Credentials: rawCreds,
		TargetDir:   targetDir,
		Sources:     sources,
	})
	if err != nil {
		c.logger.Warnf("dispatch to %s: %s", addr, err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(addr, PathCopy), bytes.NewReader(body))
	if err != nil {
		c.logger.Warnf("dispatch to %s: %s", addr, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnf("dispatch to %s: %s", addr, err)
		return false
	}
	go func() {
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
	}()
	return true
}

func (c *Client) fetch(ctx context.Context, addr string) ([]session.ProgressReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, PathGetProgress), nil)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, xe.New(fmt.Sprintf("worker %s responds status %d", addr, resp.StatusCode))
	}

	reports := []session.ProgressReport{}
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		return nil, xe.Wrap(err)
	}
	return reports, nil
}

// FetchProgress collects progress from all workers, concatenated in order of addrs.
//
// When any of workers fails to respond, it returns an empty slice
// with ErrProgressUnavailable, not a partial result.
func (c *Client) FetchProgress(ctx context.Context, addrs []string) ([]session.ProgressReport, error) {
	fragments := make([][]session.ProgressReport, len(addrs))

	eg, ctx := errgroup.WithContext(ctx)
	for n, addr := range addrs {
		eg.Go(func() error {
			r, err := c.fetch(ctx, addr)
			if err != nil {
				return err
			}
			fragments[n] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		c.logger.Infof("progress is unavailable: %s", err)
		return []session.ProgressReport{}, fmt.Errorf("%w: %w", derr.ErrProgressUnavailable, err)
	}

	ret := []session.ProgressReport{}
	for _, f := range fragments {
		ret = append(ret, f...)
	}
	return ret, nil
}
