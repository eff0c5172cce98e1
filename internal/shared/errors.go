package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")
	ErrUnsupported    = fmt.Errorf("unsupported by source")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrInvalidState     = fmt.Errorf("invalid or expired state")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrNoResult           = fmt.Errorf("no result")

	// Persistence errors
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrTrackExists      = fmt.Errorf("track already exists")
	ErrUserExists       = fmt.Errorf("user already exists")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrPlaylistExists   = fmt.Errorf("playlist already exists")

	// Task pool errors
	ErrWorkerLost = fmt.Errorf("worker lost before completing request")
	ErrPoolClosed = fmt.Errorf("task pool closed")

	// Session errors
	ErrSessionExists   = fmt.Errorf("session already exists")
	ErrSessionNotFound = fmt.Errorf("session not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrIndexOutOfRange = fmt.Errorf("index out of range")
)
