/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package assist talks to a remote suggestion service. Given the current
// elements and a free-text instruction it returns new element descriptors or a
// document style patch; the builder merges them like any other insertion.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sony/gobreaker"

	"goformbuilder/internal/builder"
	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/reorder"
)

// ErrNotConfigured is returned when no service URL is set.
var ErrNotConfigured = errors.New("assist service not configured")

const maxResponse = 1 << 20

// Suggestion is what the service proposes. Either part may be empty.
type Suggestion struct {
	Elements []form.Descriptor
	Style    form.Style
}

// Empty reports whether the suggestion would change nothing.
func (s Suggestion) Empty() bool { return len(s.Elements) == 0 && len(s.Style) == 0 }

// Client posts suggestion requests as JSON. After repeated transport or
// server failures its breaker opens and calls fail fast with gobreaker.ErrOpenState
// until the cool-down passes.
type Client struct {
	BaseURL string
	Token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

const (
	breakerFailures = 3
	breakerCooldown = 30 * time.Second
)

// statusError is a non-2xx reply. Only 5xx replies count against the breaker.
type statusError struct {
	code   int
	status string
	msg    string
}

func (e *statusError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("assist %s: %s", e.status, e.msg)
	}
	return "assist " + e.status
}

func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

// New builds a client. A zero timeout means 20s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	l := applog.WithComponent("assist")
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     l,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "assist",
			Timeout: breakerCooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerFailures
			},
			IsSuccessful: func(err error) bool { return !countsAsFailure(err) },
			OnStateChange: func(name string, from, to gobreaker.State) {
				l.Warn("breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
			},
		}),
	}
}

type suggestRequest struct {
	Instruction string         `json:"instruction"`
	Elements    []form.Element `json:"elements"`
}

type suggestResponse struct {
	Elements []map[string]any `json:"elements"`
	Style    form.Style       `json:"style"`
	Error    string           `json:"error"`
}

func (c *Client) post(ctx context.Context, body []byte) (*suggestResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/suggest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assist request: %w", err)
	}
	defer resp.Body.Close()

	var out suggestResponse
	decErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponse)).Decode(&out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status, msg: out.Error}
	}
	if decErr != nil {
		return nil, fmt.Errorf("decode assist response: %w", decErr)
	}
	return &out, nil
}

// Suggest asks the service for additions given the current elements.
func (c *Client) Suggest(ctx context.Context, elements []form.Element, instruction string) (Suggestion, error) {
	if c.BaseURL == "" {
		return Suggestion{}, ErrNotConfigured
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return Suggestion{}, errors.New("instruction is required")
	}
	if elements == nil {
		elements = []form.Element{}
	}
	body, err := json.Marshal(suggestRequest{Instruction: instruction, Elements: elements})
	if err != nil {
		return Suggestion{}, err
	}
	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) { return c.post(ctx, body) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Suggestion{}, fmt.Errorf("assist unavailable: %w", err)
		}
		return Suggestion{}, err
	}
	out := res.(*suggestResponse)

	s := Suggestion{Style: out.Style}
	for i, raw := range out.Elements {
		d, err := descriptor(raw)
		if err != nil {
			c.log.Warn("dropping suggested element", slog.Int("index", i), slog.Any("err", err))
			continue
		}
		s.Elements = append(s.Elements, d)
	}
	c.log.Debug("suggestion received",
		slog.Int("elements", len(s.Elements)),
		slog.Int("style_keys", len(s.Style)),
		slog.Duration("took", time.Since(start)))
	return s, nil
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// plainText strips markup the service may wrap around generated text.
func plainText(s string) string {
	textPolicyOnce.Do(func() { textPolicy = bluemonday.StrictPolicy() })
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// descriptor runs suggested fields through the same normalization as drop
// payloads, strips markup from the generated text, then keeps the required
// flag and range bounds the service set.
func descriptor(raw map[string]any) (form.Descriptor, error) {
	d, err := reorder.NormalizeFields(raw)
	if err != nil {
		return form.Descriptor{}, err
	}
	d.Label = plainText(d.Label)
	d.Content = plainText(d.Content)
	d.Placeholder = plainText(d.Placeholder)
	if d.Options != nil {
		opts := d.Options[:0]
		for _, o := range d.Options {
			if o = plainText(o); o != "" {
				opts = append(opts, o)
			}
		}
		d.Options = opts
	}
	if req, ok := raw["required"].(bool); ok && d.Type.IsInput() {
		d.Required = req
	}
	if d.Type == form.KindRange {
		d.Validation = form.NewDescriptor(form.KindRange).Validation
		if v, ok := raw["validation"].(map[string]any); ok {
			readBound(v, "min", &d.Validation.Min)
			readBound(v, "max", &d.Validation.Max)
			readBound(v, "step", &d.Validation.Step)
			if d.Validation.Step < 0 || d.Validation.Min > d.Validation.Max {
				d.Validation = form.NewDescriptor(form.KindRange).Validation
			}
		}
	}
	if d.Type.IsChoice() && len(d.Options) == 0 {
		d.Options = form.NewDescriptor(d.Type).Options
	}
	return d, nil
}

func readBound(v map[string]any, key string, dst *float64) {
	if f, ok := v[key].(float64); ok {
		*dst = f
	}
}

// Mode selects how suggested elements enter the history.
type Mode int

const (
	// AllAtOnce merges every suggested element as one undo step.
	AllAtOnce Mode = iota
	// OneByOne adds each element as its own undo step.
	OneByOne
)

// Apply merges s into b. Elements are appended; the style patch is merged
// into the document style. It returns the added elements.
func Apply(b *builder.Builder, s Suggestion, mode Mode) []form.Element {
	var added []form.Element
	switch mode {
	case OneByOne:
		for _, d := range s.Elements {
			if el := b.AddElement(d); el.ID != "" {
				added = append(added, el)
			}
		}
	default:
		added = b.AddElements(s.Elements)
	}
	if len(s.Style) > 0 {
		b.MergeStyle(s.Style)
	}
	return added
}
