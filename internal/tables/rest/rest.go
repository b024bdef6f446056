// Package rest talks to a PostgREST style backend: each table lives under
// <base>/rest/v1/<table>, filters go in the query string and every call
// carries the project's public key plus a bearer token.
package rest

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

	"golang.org/x/oauth2"

	"timetracker/internal/tables"
)

const maxBody = 8 << 20

// Client is an authenticated REST backend client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New validates the connection settings up front: a client without URL or
// key would only ever produce anonymous, empty results.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	var missing []string
	if strings.TrimSpace(baseURL) == "" {
		missing = append(missing, "BACKEND_URL")
	}
	if strings.TrimSpace(apiKey) == "" {
		missing = append(missing, "BACKEND_PUBLIC_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: set %s", tables.ErrMissingConfig, strings.Join(missing, " and "))
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: BACKEND_URL %q is not an absolute URL", tables.ErrMissingConfig, baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Table(name string) tables.Table {
	return &table{client: c, name: name}
}

// authorized returns an HTTP client that sends the caller's access token, or
// the public key when nobody is signed in.
func (c *Client) authorized(ctx context.Context) *http.Client {
	token := c.apiKey
	if id, ok := tables.IdentityFromContext(ctx); ok && id.AccessToken != "" {
		token = id.AccessToken
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	hc.Timeout = c.http.Timeout
	return hc
}

type table struct {
	client *Client
	name   string
}

func (t *table) endpoint(query url.Values) string {
	u := t.client.baseURL + "/rest/v1/" + url.PathEscape(t.name)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (t *table) Select(ctx context.Context) ([]tables.Row, error) {
	body, err := t.do(ctx, "select", http.MethodGet, t.endpoint(url.Values{"select": {"*"}}), nil, "")
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []tables.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, &tables.RemoteError{Op: "select", Table: t.name, Message: "decode response: " + err.Error(), Err: err}
	}
	return rows, nil
}

func (t *table) Upsert(ctx context.Context, row tables.Row) error {
	_, err := t.do(ctx, "upsert", http.MethodPost, t.endpoint(nil), []tables.Row{row}, "resolution=merge-duplicates,return=minimal")
	return err
}

func (t *table) Insert(ctx context.Context, rows ...tables.Row) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := t.do(ctx, "insert", http.MethodPost, t.endpoint(nil), rows, "return=minimal")
	return err
}

func (t *table) Delete(ctx context.Context, id string) error {
	_, err := t.do(ctx, "delete", http.MethodDelete, t.endpoint(url.Values{"id": {"eq." + id}}), nil, "return=minimal")
	return err
}

func (t *table) do(ctx context.Context, op, method, endpoint string, payload any, prefer string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &tables.RemoteError{Op: op, Table: t.name, Message: "encode request: " + err.Error(), Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &tables.RemoteError{Op: op, Table: t.name, Message: err.Error(), Err: err}
	}
	req.Header.Set("apikey", t.client.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := t.client.authorized(ctx).Do(req)
	if err != nil {
		return nil, &tables.RemoteError{Op: op, Table: t.name, Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &tables.RemoteError{Op: op, Table: t.name, Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}
	if resp.StatusCode >= 300 {
		return nil, tables.DecodeRemoteError(op, t.name, resp.StatusCode, body)
	}
	return body, nil
}
