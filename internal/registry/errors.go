package registry

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v57/github"
)

// ErrorType classifies registry errors so callers can decide between
// retrying, failing, and reporting user error.
type ErrorType int

const (
	// ErrTypeNetwork indicates a transient transport failure. The caller
	// may retry with a bound.
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAppNotFound indicates the app is not a registered app.
	ErrTypeAppNotFound
	// ErrTypeNoReleases indicates the app exists but has no releases.
	ErrTypeNoReleases
	// ErrTypeAssetNotFound indicates a release asset vanished between
	// listing and fetching. Not retryable.
	ErrTypeAssetNotFound
	// ErrTypeRateLimit indicates the API rate limit was exceeded.
	ErrTypeRateLimit
)

// Error provides structured error information for registry operations.
type Error struct {
	Type    ErrorType
	App     string // App name the operation concerned, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("registry: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Suggestion returns an actionable hint for the user based on the error
// type, or an empty string.
func (e *Error) Suggestion() string {
	switch e.Type {
	case ErrTypeAppNotFound:
		return "Check the spelling of the app name. Run 'pget search' to list available apps"
	case ErrTypeRateLimit:
		return "Set GITHUB_TOKEN to raise the rate limit, or wait a few minutes"
	case ErrTypeNetwork:
		return "Check your internet connection and try again"
	default:
		return ""
	}
}

// IsAppNotFound reports whether err indicates an app unknown to the registry.
func IsAppNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Type == ErrTypeAppNotFound
}

// IsNoReleases reports whether err indicates an app with no releases.
func IsNoReleases(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Type == ErrTypeNoReleases
}

// IsAssetNotFound reports whether err indicates a vanished release asset.
func IsAssetNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Type == ErrTypeAssetNotFound
}

// IsRetryable reports whether err is a transient failure worth retrying.
// Only plain network failures qualify: not-found errors will not heal and
// hammering a rate-limited API makes things worse.
func IsRetryable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Type == ErrTypeNetwork
}

// wrapAPIError converts a go-github error into a structured registry error.
// notFoundType says what a 404 means for the failed operation: the GitHub
// API answers 404 both for missing repositories and for missing releases.
func wrapAPIError(err error, app, message string, notFoundType ErrorType) *Error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &Error{Type: ErrTypeRateLimit, App: app, Message: message, Err: err}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &Error{Type: ErrTypeRateLimit, App: app, Message: message, Err: err}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		if respErr.Response.StatusCode == 404 {
			return &Error{Type: notFoundType, App: app, Message: message, Err: err}
		}
	}

	// Everything else (timeouts, DNS failures, connection resets) is a
	// transport problem: transient and retryable.
	return &Error{Type: ErrTypeNetwork, App: app, Message: message, Err: err}
}
