package alerthook

import (
	"net/http"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithFormatter cambia cómo se arma el texto del alerta.
func WithFormatter(f func(domain.Alert) string) Option {
	return func(c *Client) { c.format = f }
}
