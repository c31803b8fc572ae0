package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrTokenExpired   = fmt.Errorf("access token expired")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Resolution errors
	ErrPlaybackBlocked  = fmt.Errorf("playback blocked")
	ErrLoginRequired    = fmt.Errorf("login required to play this video")
	ErrNoStreamingData  = fmt.Errorf("no streaming data available")
	ErrNoAudioFormat    = fmt.Errorf("no audio formats available")
	ErrNoStreamURL      = fmt.Errorf("no stream url found")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrSessionUnset     = fmt.Errorf("no catalog session available")
	ErrVideoUnavailable = fmt.Errorf("video unavailable")

	// Storage errors (always treated as best-effort by callers)
	ErrStorage  = fmt.Errorf("storage operation failed")
	ErrNotFound = fmt.Errorf("key not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
