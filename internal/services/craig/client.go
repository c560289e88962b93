package craig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the recording service API.
type Client struct {
	baseURL   string
	userAgent string
	http      HTTPDoer
}

// NewClient constructs a recording service client. When doer is nil a default
// http.Client with the provided timeout is used.
func NewClient(baseURL, userAgent string, timeout time.Duration, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      doer,
	}
}

// Metadata fetches the recording metadata document.
func (c *Client) Metadata(ctx context.Context, id, key string) (*Metadata, error) {
	var meta Metadata
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath(id, "", key), id, key, nil, &meta); err != nil {
		return nil, err
	}
	if meta.Recording.ID == "" {
		meta.Recording.ID = id
	}
	return &meta, nil
}

// Duration fetches the recording duration in seconds from the secondary
// endpoint. Callers treat any error as "duration unknown".
func (c *Client) Duration(ctx context.Context, id, key string) (int, error) {
	var resp durationResponse
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath(id, "duration", key), id, key, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Duration, nil
}

// Job fetches the current conversion job. Returns (nil, nil) when the server
// reports no job for the recording.
func (c *Client) Job(ctx context.Context, id, key string) (*Job, error) {
	var envelope jobEnvelope
	if err := c.doJSON(ctx, http.MethodGet, c.apiPath(id, "job", key), id, key, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Job, nil
}

// CreateJob posts a new conversion job for the recording.
func (c *Client) CreateJob(ctx context.Context, id, key string, req JobRequest) (*Job, error) {
	var envelope jobEnvelope
	if err := c.doJSON(ctx, http.MethodPost, c.apiPath(id, "job", key), id, key, req, &envelope); err != nil {
		return nil, err
	}
	return envelope.Job, nil
}

// DeleteJob removes the recording's conversion job. A 404 means no job
// exists, which is success for this call.
func (c *Client) DeleteJob(ctx context.Context, id, key string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.apiPath(id, "job", key), id, key, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete job: unexpected status %d", resp.StatusCode)
	}
}

// DownloadURL derives the artifact URL for a job's output file name.
func (c *Client) DownloadURL(filename string) string {
	return c.baseURL + "/dl/" + filename
}

// Download opens a streaming body for the named artifact. The caller must
// close the returned reader.
func (c *Client) Download(ctx context.Context, filename string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(filename), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("download %s: unexpected status %d", filename, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) apiPath(id, suffix, key string) string {
	path := c.baseURL + "/api/v1/recordings/" + url.PathEscape(id)
	if suffix != "" {
		path += "/" + suffix
	}
	return path + "?key=" + url.QueryEscape(key)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL, id, key string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", fmt.Sprintf("%s/rec/%s?key=%s", c.baseURL, url.PathEscape(id), url.QueryEscape(key)))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL, id, key string, body, out any) error {
	req, err := c.newRequest(ctx, method, rawURL, id, key, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
