// Package alerthook manda los alertas del guard a un webhook externo
// (Slack, Discord o cualquier endpoint que acepte {"text": ...}).
package alerthook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/app/service"
	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

type Client struct {
	url    string
	http   *http.Client
	format func(domain.Alert) string
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		http:   &http.Client{Timeout: 10 * time.Second},
		format: service.FormatAlert,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type payload struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// Notify implementa service.Notifier.
func (c *Client) Notify(ctx context.Context, a domain.Alert) error {
	text := c.format(a)
	body, err := json.Marshal(payload{Text: text, Content: text})
	if err != nil {
		return err
	}
	return c.post(ctx, body, true)
}

// post: maneja 429 con Retry-After simple, un solo reintento.
func (c *Client) post(ctx context.Context, body []byte, retry bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("alert webhook http: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests && retry {
		wait := time.Second
		if sec, _ := strconv.Atoi(res.Header.Get("Retry-After")); sec > 0 {
			wait = time.Duration(sec) * time.Second
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		return c.post(ctx, body, false)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
