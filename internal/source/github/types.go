package github

import "time"

// notificationThread is the wire shape of one entry from the
// notifications listing endpoint.
type notificationThread struct {
	ID         string           `json:"id"`
	Unread     bool             `json:"unread"`
	Reason     string           `json:"reason"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Subject    threadSubject    `json:"subject"`
	Repository threadRepository `json:"repository"`
	URL        string           `json:"url"`
}

type threadSubject struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

type threadRepository struct {
	FullName string `json:"full_name"`
}

// user is the wire shape of an account reference.
type user struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// team is the wire shape of a team reference.
type team struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// subjectDetail holds the lifecycle fields shared by issues and pull
// requests. MergedAt is only present on pull requests.
type subjectDetail struct {
	State    string     `json:"state"`
	Merged   bool       `json:"merged"`
	MergedAt *time.Time `json:"merged_at"`
}

// pullRequestDetail is the wire shape of a full pull request, reduced
// to the review-relevant fields.
type pullRequestDetail struct {
	Draft              bool   `json:"draft"`
	RequestedReviewers []user `json:"requested_reviewers"`
	RequestedTeams     []team `json:"requested_teams"`
}

// apiError is the standard error body returned by the API.
type apiError struct {
	Message string `json:"message"`
}
