package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/shared"
)

const (
	lastfmBaseURL = "https://ws.audioscrobbler.com/2.0"
	lastfmAuthURL = "https://www.last.fm/api/auth/"
)

// LastFMSession is the session key Last.fm issues for a linked account.
type LastFMSession struct {
	Name       string `json:"name"`
	Key        string `json:"key"`
	Subscriber int    `json:"subscriber"`
}

// LastFMService links Last.fm accounts through the web auth flow.
type LastFMService struct {
	api    *APIClient
	key    string
	secret string
	logger *log.Logger
}

// NewLastFMService creates the Last.fm client. baseURL may be empty.
func NewLastFMService(c shared.LastFMConfig, baseURL string, logger *log.Logger) (*LastFMService, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("%w: lastfm client_id and client_secret", shared.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = lastfmBaseURL
	}
	return &LastFMService{
		api:    NewAPIClient(baseURL, nil),
		key:    c.ClientID,
		secret: c.ClientSecret,
		logger: shared.WithLogger(logger, "service", "lastfm"),
	}, nil
}

// AuthURL is where a user grants access. Last.fm redirects back with ?token=.
func (l *LastFMService) AuthURL(callback string) string {
	return lastfmAuthURL + "?" + url.Values{"api_key": []string{l.key}, "cb": []string{callback}}.Encode()
}

// Signature computes api_sig for auth.getSession.
func (l *LastFMService) Signature(token string) string {
	sum := md5.Sum([]byte("api_key" + l.key + "methodauth.getSessiontoken" + token + l.secret))
	return hex.EncodeToString(sum[:])
}

// Session trades a callback token for a session.
func (l *LastFMService) Session(ctx context.Context, token string) (*LastFMSession, error) {
	q := url.Values{
		"method":  []string{"auth.getSession"},
		"api_key": []string{l.key},
		"token":   []string{token},
		"api_sig": []string{l.Signature(token)},
		"format":  []string{"json"},
	}

	var result struct {
		Session *LastFMSession `json:"session"`
		Error   int            `json:"error"`
		Message string         `json:"message"`
	}
	if err := l.api.GetJSON(ctx, "", q, &result); err != nil {
		return nil, err
	}
	if result.Session == nil {
		return nil, fmt.Errorf("%w: lastfm: %s", shared.ErrAuthFailed, result.Message)
	}
	l.logger.Info("lastfm session", "name", result.Session.Name)
	return result.Session, nil
}
