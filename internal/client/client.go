package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efota/efu/internal/object"
	"github.com/efota/efu/internal/progress"
)

// defaultTimeout bounds a single HTTP round-trip. Object transfers can be
// large, so it is generous; finer deadlines belong to the caller's context.
const defaultTimeout = 10 * time.Minute

// UploadResult is the outcome of one object upload negotiation.
type UploadResult string

const (
	// UploadSuccess means the object's bytes were transferred.
	UploadSuccess UploadResult = "success"
	// UploadExists means the server already holds the content; no bytes
	// were transferred.
	UploadExists UploadResult = "exists"
	// UploadFailed means the storage transfer did not complete.
	UploadFailed UploadResult = "fail"
)

// Client talks to one update-management service with one set of
// credentials. It is safe for sequential use by a single push or pull
// flow; the protocol itself is strictly ordered.
type Client struct {
	baseURL  string
	accessID string
	secret   string
	http     *http.Client
	now      func() time.Time
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithClock replaces the time source used for request signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client for the given server URL and credentials.
func New(baseURL, accessID, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		accessID: accessID,
		secret:   secret,
		http:     &http.Client{Timeout: defaultTimeout},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// newSignedRequest builds an API request carrying the EFOTA-V1
// authorization header. The signed header set covers host, timestamp,
// content type and the request id.
func (c *Client) newSignedRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("build request URL: %w", err)
	}

	now := c.now().UTC()

	headers := map[string]string{
		"Host":         u.Host,
		"Timestamp":    strconv.FormatInt(now.Unix(), 10),
		"Content-Type": "application/json",
		"X-Request-Id": uuid.NewString(),
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	names := make([]string, 0, len(headers))
	for name, value := range headers {
		req.Header.Set(name, value)
		names = append(names, name)
	}

	canonical := canonicalize(method, u.Path, headers, body)
	req.Header.Set("Authorization", Sign(canonical, names, now, c.accessID, c.secret))

	return req, nil
}

// do sends the request, mapping connection-level failures onto
// ErrServerUnreachable so callers can distinguish them from error
// responses.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}

	return resp, nil
}

// serverErrors extracts the error list from an error response body.
func serverErrors(body []byte) []string {
	var payload struct {
		Errors []string `json:"errors"`
	}

	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		if len(body) == 0 {
			return nil
		}

		return []string{string(body)}
	}

	return payload.Errors
}

// UploadMetadata posts the package metadata and returns the server-issued
// package UID. Any status other than 201 aborts with the server's
// reported error list.
func (c *Client) UploadMetadata(ctx context.Context, metadata map[string]any) (string, error) {
	body, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	req, err := c.newSignedRequest(ctx, http.MethodPost, "/packages", body)
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return "", &UploadError{Op: "upload metadata", Status: resp.StatusCode, Details: serverErrors(respBody)}
	}

	var payload struct {
		UID string `json:"uid"`
	}

	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	return payload.UID, nil
}

// UploadObject negotiates one object upload: the server either reports
// the content as already present (dedup by hash and digest pair) or
// supplies a storage backend and a one-time upload URL for the object's
// chunk stream. Responses other than 200 and 201 are hard errors.
func (c *Client) UploadObject(ctx context.Context, uid string, obj *object.Object, reporter progress.Reporter) (UploadResult, error) {
	if reporter == nil {
		reporter = progress.Nop{}
	}

	fingerprint, err := obj.ToUpload()
	if err != nil {
		return UploadFailed, err
	}

	body, err := json.Marshal(fingerprint)
	if err != nil {
		return UploadFailed, fmt.Errorf("encode upload body: %w", err)
	}

	path := fmt.Sprintf("/packages/%s/objects/%s", uid, obj.SHA256())

	req, err := c.newSignedRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return UploadFailed, err
	}

	resp, err := c.do(req)
	if err != nil {
		return UploadFailed, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return UploadExists, nil
	case http.StatusCreated:
		var instructions struct {
			Storage string `json:"storage"`
			URL     string `json:"url"`
		}

		if err := json.Unmarshal(respBody, &instructions); err != nil {
			return UploadFailed, fmt.Errorf("decode upload instructions: %w", err)
		}

		return c.uploadToStorage(ctx, instructions.Storage, instructions.URL, obj, reporter)
	default:
		return UploadFailed, &UploadError{Op: "upload object " + obj.Filename(), Status: resp.StatusCode, Details: serverErrors(respBody)}
	}
}

// uploadToStorage streams the object's chunks to the backend URL supplied
// by the server. The URL carries its own one-time authorization, so the
// request is not signed. A dummy backend is accepted for tests and dry
// runs.
func (c *Client) uploadToStorage(ctx context.Context, storage, uploadURL string, obj *object.Object, reporter progress.Reporter) (UploadResult, error) {
	if storage == "dummy" {
		return UploadSuccess, nil
	}

	stream, err := obj.Reader(func() { reporter.ObjectRead(obj.Filename()) })
	if err != nil {
		return UploadFailed, err
	}
	defer stream.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, stream)
	if err != nil {
		return UploadFailed, fmt.Errorf("build storage request: %w", err)
	}

	if size, err := obj.FileSize(); err == nil {
		req.ContentLength = size
	}

	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req)
	if err != nil {
		return UploadFailed, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadFailed, nil
	}

	return UploadSuccess, nil
}

// FinishPush finalizes a push. Anything but 204 is a hard error carrying
// the server's detail.
func (c *Client) FinishPush(ctx context.Context, uid string) error {
	req, err := c.newSignedRequest(ctx, http.MethodPut, fmt.Sprintf("/packages/%s/finish", uid), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return &UploadError{Op: "finish push", Status: resp.StatusCode, Details: serverErrors(respBody)}
	}

	return nil
}

// DownloadMetadata fetches a package's metadata by UID.
func (c *Client) DownloadMetadata(ctx context.Context, uid string) (map[string]any, error) {
	req, err := c.newSignedRequest(ctx, http.MethodGet, "/packages/"+uid, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{Op: "download metadata", Status: resp.StatusCode, Body: string(respBody)}
	}

	var metadata map[string]any
	if err := json.Unmarshal(respBody, &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return metadata, nil
}

// DownloadObject streams one object's payload to its local filename.
func (c *Client) DownloadObject(ctx context.Context, uid string, obj *object.Object) error {
	path := fmt.Sprintf("/packages/%s/objects/%s", uid, obj.SHA256())

	req, err := c.newSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &DownloadError{Op: "download object " + obj.Filename(), Status: resp.StatusCode, Body: string(respBody)}
	}

	out, err := os.OpenFile(filepath.Clean(obj.Filename()), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", obj.Filename(), err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", obj.Filename(), err)
	}

	return out.Close()
}

// GetStatus fetches the server-side status of a pushed package.
func (c *Client) GetStatus(ctx context.Context, uid string) (string, error) {
	req, err := c.newSignedRequest(ctx, http.MethodGet, fmt.Sprintf("/packages/%s/status", uid), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{Op: "get status", Status: resp.StatusCode, Body: string(respBody)}
	}

	var payload struct {
		Status string `json:"status"`
	}

	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}

	return payload.Status, nil
}
