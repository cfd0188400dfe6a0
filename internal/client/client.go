// Package client is a Go client for the yearbook HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erazemk/yearbook/internal/model"
)

// ErrNotFound matches API errors for ids that are not in the expected set.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to a yearbook server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Data fetches the full listing.
func (c *Client) Data(ctx context.Context) (*model.BoardData, error) {
	var data model.BoardData
	if err := c.do(ctx, http.MethodGet, "/api/data", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateSignature validates and submits a signature. Invalid forms are
// rejected without contacting the server.
func (c *Client) CreateSignature(ctx context.Context, form SignatureForm) (*model.Item, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	body := map[string]string{
		"name":      strings.TrimSpace(form.Name),
		"type":      form.Category,
		"imageData": dataURL(form.Image),
	}
	var resp struct {
		Signature model.Item `json:"signature"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/signatures", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Signature, nil
}

// CreateMemory validates and submits a memory. Invalid forms are rejected
// without contacting the server.
func (c *Client) CreateMemory(ctx context.Context, form MemoryForm) (*model.Item, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	body := map[string]string{
		"name":        strings.TrimSpace(form.Name),
		"description": strings.TrimSpace(form.Description),
		"imageData":   dataURL(form.Image),
	}
	var resp struct {
		Memory model.Item `json:"memory"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/memories", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Memory, nil
}

// Approve moves a pending item of the given kind to the board. A nil
// position keeps the item's current one.
func (c *Client) Approve(ctx context.Context, kind, id string, pos *model.Position) error {
	var body any
	if pos != nil {
		body = map[string]any{"position": pos}
	}
	return c.do(ctx, http.MethodPost, kindPath(kind, id)+"/approve", body, nil)
}

// Reject removes a pending item of the given kind.
func (c *Client) Reject(ctx context.Context, kind, id string) error {
	return c.do(ctx, http.MethodPost, kindPath(kind, id)+"/reject", nil, nil)
}

// UpdatePosition stores an approved item's board position.
func (c *Client) UpdatePosition(ctx context.Context, id string, pos model.Position) error {
	return c.do(ctx, http.MethodPut, itemPath(id)+"/position", map[string]any{"position": pos}, nil)
}

// UpdateScale stores an approved item's scale and returns the value the
// server kept after clamping.
func (c *Client) UpdateScale(ctx context.Context, id string, scale float64) (float64, error) {
	var resp struct {
		Scale float64 `json:"scale"`
	}
	if err := c.do(ctx, http.MethodPut, itemPath(id)+"/scale", map[string]float64{"scale": scale}, &resp); err != nil {
		return 0, err
	}
	return resp.Scale, nil
}

// UpdateMetadata renames an approved item. category is ignored for memories.
func (c *Client) UpdateMetadata(ctx context.Context, id, name, category string) (*model.Item, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	var resp struct {
		Signature model.Item `json:"signature"`
	}
	body := map[string]string{"name": strings.TrimSpace(name), "type": category}
	if err := c.do(ctx, http.MethodPut, itemPath(id), body, &resp); err != nil {
		return nil, err
	}
	return &resp.Signature, nil
}

// Delete removes an approved item.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, nil)
}

// History lists live and removed items, newest first.
func (c *Client) History(ctx context.Context, filter model.HistoryFilter) ([]model.HistoryEntry, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Category != "" {
		q.Set("type", filter.Category)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	path := "/api/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var entries []model.HistoryEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateSettings stores the board settings and returns the stored values.
func (c *Client) UpdateSettings(ctx context.Context, settings model.Settings) (*model.Settings, error) {
	var resp struct {
		Settings model.Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/settings", settings, &resp); err != nil {
		return nil, err
	}
	return &resp.Settings, nil
}

// Image downloads the image at an item's imagePath.
func (c *Client) Image(ctx context.Context, imagePath string) ([]byte, error) {
	return c.download(ctx, "/"+strings.TrimLeft(imagePath, "/"))
}

// Snapshot downloads the rendered board as PNG.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	return c.download(ctx, "/api/board/snapshot.png")
}

// Export downloads the board snapshot to path. The file appears only once
// the complete image has been received; a failed export leaves no file.
func (c *Client) Export(ctx context.Context, path string) error {
	data, err := c.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("exporting board: %w", err)
	}
	if len(data) == 0 {
		return errors.New("exporting board: empty snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".yearbook-export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving export: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

func kindPath(kind, id string) string {
	if kind == model.KindMemory {
		return "/api/memories/" + url.PathEscape(id)
	}
	return itemPath(id)
}

func itemPath(id string) string {
	return "/api/signatures/" + url.PathEscape(id)
}
