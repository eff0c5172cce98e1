package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/repositories"
	"github.com/desertthunder/goose/internal/services"
	"github.com/desertthunder/goose/internal/shared"
	"golang.org/x/oauth2"
)

// LinkStates consumes the single-use states issued by /link.
type LinkStates interface {
	Consume(ctx context.Context, state, service string) (*repositories.LinkState, error)
}

// Accounts is the part of the user store account linking writes to.
type Accounts interface {
	SaveToken(ctx context.Context, discordID, service string, token models.OAuthToken) error
	LinkAccount(ctx context.Context, discordID, service string, account models.LinkedAccount) error
	GetUserByWebClientID(ctx context.Context, webClientID string) (*models.User, error)
}

// OAuthProvider is an authorization code provider users can link.
type OAuthProvider interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Account(ctx context.Context, accessToken string) (models.LinkedAccount, error)
}

type spotifyProvider struct{ *services.SpotifyService }

func (p spotifyProvider) Account(ctx context.Context, accessToken string) (models.LinkedAccount, error) {
	u, err := p.Profile(ctx, accessToken)
	if err != nil {
		return models.LinkedAccount{}, err
	}
	return models.LinkedAccount{ID: u.ID, Username: u.DisplayName, Locale: u.Country}, nil
}

// SpotifyProvider links Spotify accounts.
func SpotifyProvider(s *services.SpotifyService) OAuthProvider {
	return spotifyProvider{s}
}

type napsterProvider struct{ *services.NapsterService }

func (p napsterProvider) Account(ctx context.Context, accessToken string) (models.LinkedAccount, error) {
	a, err := p.Profile(ctx, accessToken)
	if err != nil {
		return models.LinkedAccount{}, err
	}
	return models.LinkedAccount{ID: a.ID, Username: a.ScreenName, Locale: a.Country}, nil
}

// NapsterProvider links Napster accounts.
func NapsterProvider(n *services.NapsterService) OAuthProvider {
	return napsterProvider{n}
}

// OAuthHandler completes the authorization code flow for one service.
//
// The state query parameter must be one issued by /link for the same service; it names the
// Discord user the account is linked to and is consumed on first use.
type OAuthHandler struct {
	service  string
	provider OAuthProvider
	states   LinkStates
	accounts Accounts
	logger   *log.Logger
}

// NewOAuthHandler creates a callback handler for service, one of the models.Service*
// constants.
func NewOAuthHandler(service string, provider OAuthProvider, states LinkStates, accounts Accounts, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{
		service:  service,
		provider: provider,
		states:   states,
		accounts: accounts,
		logger:   shared.WithLogger(logger, "module", "oauth", "service", service),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/oauth2/" + h.service}
}

// ServeHTTP handles the provider redirect.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	link, err := h.states.Consume(ctx, q.Get("state"), h.service)
	if err != nil {
		h.logger.Warn("rejected callback", "error", err)
		renderFailure(w, errorStatus(err), "Link expired", "Run /link again from Discord to get a fresh link.")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.logger.Warn("authorization denied", "discord", link.DiscordID, "error", q.Get("error"), "description", q.Get("error_description"))
		renderFailure(w, http.StatusBadRequest, "Authorization failed", "The provider did not authorize the link.")
		return
	}

	token, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("token exchange failed", "discord", link.DiscordID, "error", err)
		renderFailure(w, http.StatusBadGateway, "Token exchange failed", "Try linking again in a few minutes.")
		return
	}

	account, err := h.provider.Account(ctx, token.AccessToken)
	if err != nil {
		h.logger.Error("failed to fetch profile", "discord", link.DiscordID, "error", err)
		renderFailure(w, http.StatusBadGateway, "Profile unavailable", "Try linking again in a few minutes.")
		return
	}

	if err := h.save(ctx, link.DiscordID, token, account); err != nil {
		h.logger.Error("failed to store link", "discord", link.DiscordID, "error", err)
		renderFailure(w, errorStatus(err), "Link failed", "Use a command in Discord first so the bot knows you, then link again.")
		return
	}

	h.logger.Info("linked account", "discord", link.DiscordID, "username", account.Username)
	renderSuccess(w, h.service, account.Username)
}

func (h *OAuthHandler) save(ctx context.Context, discordID string, token *oauth2.Token, account models.LinkedAccount) error {
	stored := models.OAuthToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		stored.Scope = scope
	}
	if err := h.accounts.SaveToken(ctx, discordID, h.service, stored); err != nil {
		return err
	}
	return h.accounts.LinkAccount(ctx, discordID, h.service, account)
}

// LastFMSessions trades Last.fm callback tokens for sessions.
type LastFMSessions interface {
	Session(ctx context.Context, token string) (*services.LastFMSession, error)
}

// LastFMHandler completes the Last.fm web auth flow.
//
// Last.fm appends token to the callback URL. The user is identified by a state issued by
// /link, or by the webClientId of a browser session.
type LastFMHandler struct {
	sessions LastFMSessions
	states   LinkStates
	accounts Accounts
	logger   *log.Logger
}

func NewLastFMHandler(sessions LastFMSessions, states LinkStates, accounts Accounts, logger *log.Logger) *LastFMHandler {
	return &LastFMHandler{
		sessions: sessions,
		states:   states,
		accounts: accounts,
		logger:   shared.WithLogger(logger, "module", "oauth", "service", models.ServiceLastFM),
	}
}

func (h *LastFMHandler) Routes() []string {
	return []string{"/lastfm"}
}

func (h *LastFMHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	discordID, err := h.owner(ctx, q.Get("state"), q.Get("webClientId"))
	if err != nil {
		h.logger.Warn("rejected callback", "error", err)
		renderFailure(w, errorStatus(err), "Link expired", "Run /link again from Discord to get a fresh link.")
		return
	}

	token := q.Get("token")
	if token == "" {
		renderFailure(w, http.StatusBadRequest, "Authorization failed", "Last.fm did not send a token.")
		return
	}

	session, err := h.sessions.Session(ctx, token)
	if err != nil {
		h.logger.Error("session request failed", "discord", discordID, "error", err)
		renderFailure(w, http.StatusBadGateway, "Token exchange failed", "Try linking again in a few minutes.")
		return
	}

	// Last.fm sessions never expire and the API exposes no stable id besides the name.
	account := models.LinkedAccount{ID: session.Name, Username: session.Name, Locale: "en"}
	if err := h.accounts.SaveToken(ctx, discordID, models.ServiceLastFM, models.OAuthToken{AccessToken: session.Key}); err != nil {
		h.logger.Error("failed to save token", "discord", discordID, "error", err)
		renderFailure(w, errorStatus(err), "Link failed", "Use a command in Discord first so the bot knows you, then link again.")
		return
	}
	if err := h.accounts.LinkAccount(ctx, discordID, models.ServiceLastFM, account); err != nil {
		h.logger.Error("failed to link account", "discord", discordID, "error", err)
		renderFailure(w, errorStatus(err), "Link failed", "Try linking again in a few minutes.")
		return
	}

	h.logger.Info("linked account", "discord", discordID, "username", session.Name)
	renderSuccess(w, models.ServiceLastFM, session.Name)
}

func (h *LastFMHandler) owner(ctx context.Context, state, webClientID string) (string, error) {
	switch {
	case state != "":
		link, err := h.states.Consume(ctx, state, models.ServiceLastFM)
		if err != nil {
			return "", err
		}
		return link.DiscordID, nil
	case webClientID != "":
		u, err := h.accounts.GetUserByWebClientID(ctx, webClientID)
		if err != nil {
			return "", err
		}
		return u.Discord.ID, nil
	default:
		return "", fmt.Errorf("%w: no state or web client", shared.ErrInvalidState)
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
