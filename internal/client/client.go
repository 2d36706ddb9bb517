// Package client is the HTTP and websocket client for the restaurant API.
// *Client implements viewmodel.DataService.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/viewmodel"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 5 * time.Second

	headerClientID    = "X-Client-ID"
	headerIdempotency = "Idempotency-Key"
	headerRequestID   = "X-Request-ID"
)

var (
	// ErrNotFound matches an APIError with status 404.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation matches an APIError with status 409.
	ErrConstraintViolation = viewmodel.ErrConstraintViolation
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api %d: %s", e.Status, msg)
}

// Is maps statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConstraintViolation:
		return e.Status == http.StatusConflict
	}
	return false
}

// Client talks to one API base URL, e.g. http://localhost:8080/api/v1.
type Client struct {
	base     *url.URL
	http     *http.Client
	dialer   *websocket.Dialer
	clientID string
	log      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option { return func(c *Client) { c.dialer = d } }

// WithClientID sets the X-Client-ID sent with every request. It scopes
// idempotency keys and rate limits on the server.
func WithClientID(id string) Option { return func(c *Client) { c.clientID = id } }

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(lg zerolog.Logger) Option { return func(c *Client) { c.log = lg } }

// New parses baseURL and returns a client with sane timeouts.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   defaultHTTPClient(),
		dialer: &websocket.Dialer{HandshakeTimeout: defaultConnectTimeout, Proxy: http.ProxyFromEnvironment},
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: defaultConnectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: defaultConnectTimeout,
		},
		Timeout: defaultTimeout,
	}
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends a JSON request and decodes a JSON response into out (when not
// nil). POSTs carry a fresh Idempotency-Key.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}
	if method == http.MethodPost {
		req.Header.Set(headerIdempotency, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get(headerRequestID)}
	var env struct {
		RequestID string `json:"request_id"`
		Code      string `json:"code"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&env); err == nil {
		e.Code, e.Message = env.Code, env.Message
		if env.RequestID != "" {
			e.RequestID = env.RequestID
		}
	}
	return e
}

// ListTables returns the tables matching f.
func (c *Client) ListTables(ctx context.Context, f domain.TableFilter) ([]domain.Table, error) {
	q := url.Values{}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	if f.Code != 0 {
		q.Set("code", strconv.Itoa(f.Code))
	}
	var out struct {
		Tables []domain.Table `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/tables", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

// GetTable returns the first table with code.
func (c *Client) GetTable(ctx context.Context, code int) (*domain.Table, error) {
	var t domain.Table
	if err := c.do(ctx, http.MethodGet, "/tables/"+strconv.Itoa(code), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTable creates t. An empty Date means today on the server.
func (c *Client) InsertTable(ctx context.Context, t domain.Table) (*domain.Table, error) {
	body := struct {
		Code int    `json:"code"`
		Date string `json:"date,omitempty"`
	}{t.Code, t.Date}
	var out domain.Table
	if err := c.do(ctx, http.MethodPost, "/tables", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTables deletes every table with code.
func (c *Client) DeleteTables(ctx context.Context, code int) error {
	q := url.Values{"code": {strconv.Itoa(code)}}
	return c.do(ctx, http.MethodDelete, "/tables", q, nil, nil)
}

// ItemView is an item as listed by the API, with its display price.
type ItemView struct {
	domain.Item
	PriceLabel string `json:"price_label"`
}

// SearchItems lists items, optionally narrowed to a category code and
// ranked against query.
func (c *Client) SearchItems(ctx context.Context, query, category string) ([]ItemView, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if category != "" {
		q.Set("category", category)
	}
	var out struct {
		Items []ItemView `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/items", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListItems returns the whole menu with category joins.
func (c *Client) ListItems(ctx context.Context) ([]domain.Item, error) {
	views, err := c.SearchItems(ctx, "", "")
	if err != nil {
		return nil, err
	}
	items := make([]domain.Item, len(views))
	for i, v := range views {
		items[i] = v.Item
	}
	return items, nil
}

// InsertItem creates an item. A taken code yields an error matching
// ErrConstraintViolation.
func (c *Client) InsertItem(ctx context.Context, in domain.ItemInput) (*domain.Item, error) {
	var out ItemView
	if err := c.do(ctx, http.MethodPost, "/items", nil, in, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

// UpdateItem replaces the writable fields of item id.
func (c *Client) UpdateItem(ctx context.Context, id int64, in domain.ItemInput) error {
	return c.do(ctx, http.MethodPut, "/items/"+strconv.FormatInt(id, 10), nil, in, nil)
}

// DeleteItem deletes item id.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/items/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// ListCategories returns every category.
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out struct {
		Categories []domain.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// ExportItems streams the xlsx menu export into w.
func (c *Client) ExportItems(ctx context.Context, category string, w io.Writer) (int64, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/items/export", q), nil)
	if err != nil {
		return 0, err
	}
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

var _ viewmodel.DataService = (*Client)(nil)
