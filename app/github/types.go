package github

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceUnavailableError is returned by every failing gateway call. Status is zero when
// the request never produced an HTTP response.
type SourceUnavailableError struct {
	Status  int
	Message string
}

func (e *SourceUnavailableError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("source unavailable: %s", e.Message)
	}
	return fmt.Sprintf("source unavailable (status %d): %s", e.Status, e.Message)
}

type User struct {
	Login string
}

// Release, Issue and PullRequest are the gateway's view of GitHub items. Raw keeps the
// item as received so detection can store the original payload.
type Release struct {
	ID          int64
	TagName     string
	Name        string
	Body        string
	HTMLURL     string
	Draft       bool
	Prerelease  bool
	Author      User
	CreatedAt   time.Time
	PublishedAt *time.Time

	Raw json.RawMessage
}

// EffectiveAt is the publication time, falling back to creation for unpublished releases.
func (r Release) EffectiveAt() time.Time {
	if r.PublishedAt != nil && !r.PublishedAt.IsZero() {
		return *r.PublishedAt
	}
	return r.CreatedAt
}

type Issue struct {
	ID        int64
	Number    int
	Title     string
	Body      string
	State     string
	HTMLURL   string
	User      User
	CreatedAt time.Time
	UpdatedAt time.Time

	Raw json.RawMessage
}

type PullRequest struct {
	ID        int64
	Number    int
	Title     string
	Body      string
	State     string
	HTMLURL   string
	Draft     bool
	User      User
	CreatedAt time.Time
	UpdatedAt time.Time
	MergedAt  *time.Time

	Raw json.RawMessage
}
