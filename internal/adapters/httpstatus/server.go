// Package httpstatus expone health, estado por guild, incidentes y métricas.
package httpstatus

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jose-valero/guild-guard-bot/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatusSource interface {
	Status(guildID string) domain.Status
}

type IncidentSource interface {
	Recent(ctx context.Context, guildID string, limit int) ([]domain.Alert, error)
}

type Server struct {
	log       *slog.Logger
	token     string
	status    StatusSource
	incidents IncidentSource // opcional (sin DB queda nil)
	mux       *http.ServeMux
	srv       *http.Server
}

// New arma el server; si token != "" las rutas de estado piden Bearer.
func New(log *slog.Logger, token string, status StatusSource, incidents IncidentSource) *Server {
	s := &Server{log: log, token: token, status: status, incidents: incidents, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /status/{guildID}", s.auth(s.handleStatus))
	s.mux.HandleFunc("GET /incidents/{guildID}", s.auth(s.handleIncidents))
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status(r.PathValue("guildID")))
}

type incidentDTO struct {
	ID       string    `json:"id"`
	Severity string    `json:"severity"`
	Kind     string    `json:"kind"`
	ActorID  string    `json:"actor_id,omitempty"`
	Message  string    `json:"message"`
	Affected []string  `json:"affected,omitempty"`
	At       time.Time `json:"at"`
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if s.incidents == nil {
		http.Error(w, "incident journal disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	list, err := s.incidents.Recent(r.Context(), r.PathValue("guildID"), limit)
	if err != nil {
		s.log.Error("incidents query failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]incidentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, incidentDTO{ID: a.ID, Severity: string(a.Severity), Kind: a.Kind, ActorID: a.ActorID, Message: a.Message, Affected: a.Affected, At: a.At})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Run escucha hasta que ctx se cancela y después apaga con gracia.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("🌐 HTTP listening", "addr", addr)
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shut)
	}
}
