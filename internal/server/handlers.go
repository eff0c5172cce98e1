package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/repositories"
	"github.com/desertthunder/goose/internal/shared"
)

// ArtFetcher downloads Subsonic cover art.
type ArtFetcher interface {
	FetchArt(ctx context.Context, id string) ([]byte, string, error)
}

// ArtHandler proxies Subsonic cover art so that track art URLs never carry the server's
// credentials.
type ArtHandler struct {
	art    ArtFetcher
	logger *log.Logger
}

func NewArtHandler(art ArtFetcher, logger *log.Logger) *ArtHandler {
	return &ArtHandler{art: art, logger: shared.WithLogger(logger, "module", "art")}
}

func (h *ArtHandler) Routes() []string {
	return []string{"/subsonic-art/{id}"}
}

func (h *ArtHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing art id", http.StatusBadRequest)
		return
	}

	body, contentType, err := h.art.FetchArt(r.Context(), id)
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Error("failed to fetch art", "id", id, "error", err)
		http.Error(w, "art unavailable", http.StatusBadGateway)
		return
	}

	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// StoreState reports the document store connection state.
type StoreState interface {
	State() repositories.ConnState
}

// HealthHandler reports liveness and the store connection.
type HealthHandler struct {
	store StoreState
}

// NewHealthHandler returns a health check. store may be nil.
func NewHealthHandler(store StoreState) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Routes() []string {
	return []string{"/healthz"}
}

type health struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := health{Status: "ok"}
	status := http.StatusOK
	if h.store != nil {
		state := h.store.State()
		body.Store = state.String()
		if state != repositories.Connected {
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Deps are the collaborators of the web service. Nil providers are not mounted.
type Deps struct {
	States   LinkStates
	Accounts Accounts
	Spotify  OAuthProvider
	Napster  OAuthProvider
	LastFM   LastFMSessions
	Art      ArtFetcher
	Store    StoreState
}

// NewRouter wires every handler the dependencies allow behind the logging and recovery
// middleware.
func NewRouter(d Deps, logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	r.Use(Logging(logger), Recover(logger))

	r.Mount(http.MethodGet, NewHealthHandler(d.Store))
	if d.States != nil && d.Accounts != nil {
		if d.Spotify != nil {
			r.Mount(http.MethodGet, NewOAuthHandler(models.ServiceSpotify, d.Spotify, d.States, d.Accounts, logger))
		}
		if d.Napster != nil {
			r.Mount(http.MethodGet, NewOAuthHandler(models.ServiceNapster, d.Napster, d.States, d.Accounts, logger))
		}
		if d.LastFM != nil {
			r.Mount(http.MethodGet, NewLastFMHandler(d.LastFM, d.States, d.Accounts, logger))
		}
	}
	if d.Art != nil {
		r.Mount(http.MethodGet, NewArtHandler(d.Art, logger))
	}
	return r
}
