package model

import "time"

// ReasonCode is the server-supplied classification of why a notification
// event was raised.
type ReasonCode string

const (
	ReasonAssign          ReasonCode = "assign"
	ReasonAuthor          ReasonCode = "author"
	ReasonComment         ReasonCode = "comment"
	ReasonInvitation      ReasonCode = "invitation"
	ReasonManual          ReasonCode = "manual"
	ReasonMention         ReasonCode = "mention"
	ReasonReviewRequested ReasonCode = "review_requested"
	ReasonSecurityAlert   ReasonCode = "security_alert"
	ReasonStateChange     ReasonCode = "state_change"
	ReasonSubscribed      ReasonCode = "subscribed"
	ReasonTeamMention     ReasonCode = "team_mention"
	ReasonCIActivity      ReasonCode = "ci_activity"
)

// SubjectType identifies the kind of resource an event refers to.
type SubjectType string

const (
	SubjectIssue       SubjectType = "Issue"
	SubjectPullRequest SubjectType = "PullRequest"
	SubjectRelease     SubjectType = "Release"
	SubjectDiscussion  SubjectType = "Discussion"
	SubjectCommit      SubjectType = "Commit"
)

// Subject is the resource a notification event points at. URL is the
// API URL of the resource, not the browser-facing one.
type Subject struct {
	Title string      `json:"title"`
	URL   string      `json:"url"`
	Type  SubjectType `json:"type"`
}

// Repository identifies the repository an event belongs to.
type Repository struct {
	FullName string `json:"full_name"`
}

// RawEvent is a single notification event as received from the remote
// source. Events are immutable once received; identity is the ID field.
type RawEvent struct {
	ID         string     `json:"id"`
	Unread     bool       `json:"unread"`
	Reason     ReasonCode `json:"reason"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Subject    Subject    `json:"subject"`
	Repository Repository `json:"repository"`
	ThreadURL  string     `json:"thread_url"`
}

// GroupKey returns the deterministic grouping identity for the event.
// Events from different pages that share a key belong to the same group.
func (e RawEvent) GroupKey() string {
	return e.Repository.FullName + "#" + e.Subject.URL
}

// Identity is the authenticated caller as reported by the remote source.
type Identity struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Team is one of the caller's team memberships.
type Team struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}
