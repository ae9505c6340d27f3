// Package client talks to a som daemon over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/api"
	"github.com/scanomatic/som/coordinator"
)

// ~30s of trying with exponential backoff
const DefaultHttpTries = 5

// Doer is satisfied by *http.Client and *pester.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

func MakePesterClient() *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = DefaultHttpTries
	client.LogHook = func(e pester.ErrEntry) {
		log.WithFields(log.Fields{"url": e.URL, "attempt": e.Attempt}).WithError(e.Err).Warn("retrying after failed attempt")
	}
	return client
}

// StatusError is a non-2xx answer. Reason is the server's explanation when it gave one.
type StatusError struct {
	Status int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server answered %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Reason)
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

type Client struct {
	base string
	http Doer
}

func New(addr string) *Client {
	return NewWithClient(addr, MakePesterClient())
}

// NewWithClient accepts "host:port" or a full URL for addr.
func NewWithClient(addr string, doer Doer) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{base: strings.TrimSuffix(addr, "/"), http: doer}
}

func (c *Client) ServerStatus(ctx context.Context) (coordinator.ServerStatus, error) {
	var out coordinator.ServerStatus
	return out, c.get(ctx, "/status/server", &out)
}

func (c *Client) Scanners(ctx context.Context) ([]api.ScannerStatus, error) {
	var out api.ScannersResponse
	return out.Scanners, c.get(ctx, "/status/scanners", &out)
}

// FreeScanners maps free scanner ids to names.
func (c *Client) FreeScanners(ctx context.Context) (map[string]string, error) {
	var out api.FreeScannersResponse
	return out.Scanners, c.get(ctx, "/status/scanners/free", &out)
}

func (c *Client) Scanner(ctx context.Context, query string) (api.ScannerStatus, error) {
	var out api.ScannerResponse
	return out.Scanner, c.get(ctx, "/status/scanners/"+url.PathEscape(query), &out)
}

func (c *Client) Jobs(ctx context.Context) ([]api.JobStatus, error) {
	var out api.JobsResponse
	return out.Jobs, c.get(ctx, "/status/jobs", &out)
}

func (c *Client) Queue(ctx context.Context) ([]api.QueueEntry, error) {
	var out api.QueueResponse
	return out.Queue, c.get(ctx, "/status/queue", &out)
}

func (c *Client) Job(ctx context.Context, id string) (api.Job, error) {
	var out api.Job
	return out, c.get(ctx, "/jobs/"+url.PathEscape(id), &out)
}

func (c *Client) History(ctx context.Context, id string, limit int) ([]coordinator.Event, error) {
	path := "/jobs/" + url.PathEscape(id) + "/history"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out api.HistoryResponse
	return out.Events, c.get(ctx, path, &out)
}

// Submit returns the new job's id.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (string, error) {
	res, err := c.result(ctx, http.MethodPost, "/jobs", req)
	return res.ID, err
}

// Stop never fails for a refusal; check Success and Reason.
func (c *Client) Stop(ctx context.Context, id string) (api.Result, error) {
	var out api.Result
	return out, c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/stop", nil, &out)
}

func (c *Client) Progress(ctx context.Context, id string, progress, runTime float64) error {
	_, err := c.result(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/progress", api.ProgressRequest{Progress: progress, RunTime: runTime})
	return err
}

func (c *Client) Pause(ctx context.Context, id string) error {
	_, err := c.result(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/pause", nil)
	return err
}

func (c *Client) Resume(ctx context.Context, id string) error {
	_, err := c.result(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/resume", nil)
	return err
}

func (c *Client) Finish(ctx context.Context, id string, success bool, reason string) error {
	_, err := c.result(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/finish", api.FinishRequest{Success: success, Reason: reason})
	return err
}

func (c *Client) Remove(ctx context.Context, id string) error {
	_, err := c.result(ctx, http.MethodDelete, "/queue/"+url.PathEscape(id), nil)
	return err
}

// Flush empties the queue and returns how many jobs were removed.
func (c *Client) Flush(ctx context.Context) (int, error) {
	res, err := c.result(ctx, http.MethodDelete, "/queue", nil)
	if err != nil || res.Removed == nil {
		return 0, err
	}
	return *res.Removed, nil
}

func (c *Client) SetPower(ctx context.Context, scanner, jobID string, on bool) error {
	_, err := c.result(ctx, http.MethodPost, "/scanners/"+url.PathEscape(scanner)+"/power", api.PowerRequest{JobID: jobID, Power: on})
	return err
}

// AcquireLock reports whether owner now holds key. The server never says why not.
func (c *Client) AcquireLock(ctx context.Context, key, owner string) (bool, error) {
	return c.lock(ctx, "acquire", key, owner)
}

func (c *Client) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	return c.lock(ctx, "release", key, owner)
}

func (c *Client) lock(ctx context.Context, op, key, owner string) (bool, error) {
	path := "/locks/" + op + "/" + strings.TrimPrefix(key, "/") + "?owner=" + url.QueryEscape(owner)
	var out api.LockResult
	return out.Success, c.do(ctx, http.MethodPost, path, nil, &out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// result performs a write whose refusal is an error.
func (c *Client) result(ctx context.Context, method, path string, in interface{}) (api.Result, error) {
	var out api.Result
	if err := c.do(ctx, method, path, in, &out); err != nil {
		return out, err
	}
	if !out.Success {
		return out, errors.Errorf("%s %s refused: %s", method, path, out.Reason)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrapf(err, "building %s %s", method, path)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s %s", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var res api.Result
		_ = json.Unmarshal(data, &res)
		return &StatusError{Status: resp.StatusCode, Reason: res.Reason}
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding %s %s", method, path)
}
