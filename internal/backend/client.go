/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"goformbuilder/internal/form"
	"goformbuilder/internal/storage"
)

// Client is a minimal HTTP client for the forms API. It satisfies the same
// Save/Update/Load/List/Delete surface as the local store so the CLI can
// persist remotely.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, u.Path, resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func statusError(method, path string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(b, &payload)
	err := fmt.Errorf("server %s %s: %s", method, path, resp.Status)
	if payload.Error != "" {
		err = fmt.Errorf("%w: %s", err, payload.Error)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.Join(storage.ErrNotFound, err)
	case http.StatusUnprocessableEntity:
		return errors.Join(storage.ErrInvalidDocument, err)
	}
	return err
}

// IssueToken asks the server for a bearer token and stores it on the client.
func (c *Client) IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

// Save creates a new form on the server and returns its id.
func (c *Client) Save(ctx context.Context, doc form.Document) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/forms", doc, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Update replaces the form stored under id.
func (c *Client) Update(ctx context.Context, id string, doc form.Document) error {
	return c.doJSON(ctx, http.MethodPut, "/api/forms/"+url.PathEscape(id), doc, nil)
}

// Load fetches a form by id.
func (c *Client) Load(ctx context.Context, id string) (form.Document, error) {
	var doc form.Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/forms/"+url.PathEscape(id), nil, &doc); err != nil {
		return form.Document{}, err
	}
	if doc.Elements == nil {
		doc.Elements = []form.Element{}
	}
	return doc, nil
}

// List returns form summaries, most recently updated first.
func (c *Client) List(ctx context.Context) ([]storage.Summary, error) {
	var list []summaryJSON
	if err := c.doJSON(ctx, http.MethodGet, "/api/forms", nil, &list); err != nil {
		return nil, err
	}
	out := make([]storage.Summary, 0, len(list))
	for _, s := range list {
		out = append(out, storage.Summary(s))
	}
	return out, nil
}

// Delete removes a form.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/forms/"+url.PathEscape(id), nil, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
