package model

import "strings"

// Fallback team buckets used when the owning team cannot be identified.
// Team mentions never carry team attribution in the reason code, and a
// team review request can be "orphaned" (already consumed or lagging on
// the remote side), so both need a generic bucket.
const (
	GenericTeamReviewSlug  = "_team_review_requests"
	GenericTeamReviewName  = "Team Review Requests"
	GenericTeamMentionSlug = "_team_mentions"
	GenericTeamMentionName = "Team Mentions"
)

// TeamInfo is the cached result of team/draft disambiguation for one
// notification event. An empty TeamSlug on a positive classification
// means the generic team bucket applies.
type TeamInfo struct {
	IsTeamReviewRequest bool   `json:"isTeamReviewRequest"`
	IsDraft             bool   `json:"isDraft"`
	TeamSlug            string `json:"teamSlug,omitempty"`
	TeamName            string `json:"teamName,omitempty"`
}

// OwningTeam names the team a group is attributed to.
type OwningTeam struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// NotificationGroup is a logical work item: all events that share a
// repository and subject, plus the classification flags derived from
// them. Groups are mutable only during the classification pass.
type NotificationGroup struct {
	Key        string
	Repository Repository
	Subject    Subject
	Events     []RawEvent

	IsOwnContent        bool
	IsProminent         bool
	HasReviewRequest    bool
	IsTeamReviewRequest bool
	HasMention          bool
	HasTeamMention      bool
	IsDraftPR           bool
	Team                *OwningTeam
}

// LatestEventTime returns the most recent UpdatedAt among member events.
func (g *NotificationGroup) LatestEventTime() (latest int64) {
	for _, e := range g.Events {
		if ts := e.UpdatedAt.UnixNano(); ts > latest {
			latest = ts
		}
	}
	return latest
}

// NormalizeSlug canonicalizes a team slug for matching. Hyphen and
// underscore are treated as interchangeable to cover slug-formatting
// drift between systems.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.ReplaceAll(slug, "_", "-"))
}

// SlugsEqual reports whether two team slugs match under normalization.
func SlugsEqual(a, b string) bool {
	return NormalizeSlug(a) == NormalizeSlug(b)
}
