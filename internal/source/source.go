package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/gh-triage/internal/model"
)

// AuthError indicates that authentication has failed or expired.
// It is returned by the client when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates that a referenced subject no longer exists.
// Callers cache the subject as deleted rather than unknown, so the
// distinction from other failures matters.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.URL)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// SubjectDetail is the lifecycle information fetched for an issue or
// pull request subject.
type SubjectDetail struct {
	State model.SubjectState
}

// PullRequestDetail carries the review-relevant fields of a pull
// request. Unknown or extra remote fields are ignored, never probed.
type PullRequestDetail struct {
	Draft              bool
	RequestedReviewers []model.Identity
	RequestedTeams     []model.Team
}

// ListOptions controls pagination and the time bound for event listing.
type ListOptions struct {
	Page     int
	PageSize int
	Since    time.Time
}

// Client defines the contract with the remote notification source.
type Client interface {
	// GetCurrentUser fetches the authenticated caller's profile.
	GetCurrentUser(ctx context.Context) (model.Identity, error)

	// ListEvents retrieves one page of notification events. A page
	// shorter than opts.PageSize signals that no further pages exist.
	ListEvents(ctx context.Context, opts ListOptions) ([]model.RawEvent, error)

	// GetSubjectDetail fetches the lifecycle state of an issue or PR by
	// its API URL. Returns a NotFoundError if the subject was deleted.
	GetSubjectDetail(ctx context.Context, url string) (*SubjectDetail, error)

	// GetPullRequestDetail fetches the review-relevant fields of a PR
	// by its API URL.
	GetPullRequestDetail(ctx context.Context, url string) (*PullRequestDetail, error)

	// GetUserTeams fetches the caller's team memberships.
	GetUserTeams(ctx context.Context) ([]model.Team, error)

	// MarkRead marks a single notification event as read.
	MarkRead(ctx context.Context, eventID string) error
}
