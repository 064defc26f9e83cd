package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/time/rate"
)

type ClientConfig struct {
	BaseURL           string
	Token             string
	UserAgent         string
	RequestsPerSecond float64
	MaxPages          int
}

// Client lists releases, issues and pull requests of a repository through the GitHub
// REST API. It never retries; callers re-run the whole detection instead.
type Client struct {
	api      *gogithub.Client
	maxPages int
	limiter  *rate.Limiter
}

func NewClient(config ClientConfig, httpClient *http.Client) (*Client, error) {
	api := gogithub.NewClient(httpClient)
	if config.Token != "" {
		api = api.WithAuthToken(config.Token)
	}
	if config.UserAgent != "" {
		api.UserAgent = config.UserAgent
	}

	if config.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse GitHub API URL: %w", err)
		}
		api.BaseURL = baseURL
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	maxPages := config.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	return &Client{
		api:      api,
		maxPages: maxPages,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

// ListReleases returns the most recent page of releases. The API has no since filter for
// releases, so callers filter client-side.
func (c *Client) ListReleases(ctx context.Context, fullName string, pageSize int) ([]Release, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	items, resp, err := c.api.Repositories.ListReleases(ctx, owner, repo, &gogithub.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, sourceError(resp, err)
	}

	releases := make([]Release, 0, len(items))
	for _, item := range items {
		release, err := toRelease(item)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}

	return releases, nil
}

// ListIssues returns issues created or updated since the given time, following pagination.
// Pull requests, which the issues endpoint also returns, are dropped.
func (c *Client) ListIssues(ctx context.Context, fullName string, since time.Time, pageSize int) ([]Issue, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	opts := &gogithub.IssueListByRepoOptions{
		State:       "all",
		Since:       since.UTC(),
		ListOptions: gogithub.ListOptions{PerPage: pageSize},
	}

	var issues []Issue
	for page := 0; ; page++ {
		if page == c.maxPages {
			return nil, pageLimitError("issues", fullName, c.maxPages)
		}

		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		items, resp, err := c.api.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, sourceError(resp, err)
		}

		for _, item := range items {
			if item.IsPullRequest() {
				continue
			}
			issue, err := toIssue(item)
			if err != nil {
				return nil, err
			}
			issues = append(issues, issue)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return issues, nil
}

// ListPullRequests pages backward through pull requests sorted by creation time and stops
// after the first page that reaches past since. Items older than since may be returned.
func (c *Client) ListPullRequests(ctx context.Context, fullName string, since time.Time, pageSize int) ([]PullRequest, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	opts := &gogithub.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: pageSize},
	}

	var pulls []PullRequest
	for page := 0; ; page++ {
		if page == c.maxPages {
			return nil, pageLimitError("pull requests", fullName, c.maxPages)
		}

		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		items, resp, err := c.api.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, sourceError(resp, err)
		}

		crossed := false
		for _, item := range items {
			pull, err := toPullRequest(item)
			if err != nil {
				return nil, err
			}
			pulls = append(pulls, pull)
			if pull.CreatedAt.Before(since) {
				crossed = true
			}
		}

		if crossed || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return pulls, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &SourceUnavailableError{Message: fmt.Sprintf("rate limiter: %v", err)}
	}
	return nil
}

// pageLimitError fails the whole listing when unread pages remain inside the window.
func pageLimitError(stream, fullName string, maxPages int) error {
	return &SourceUnavailableError{
		Message: fmt.Sprintf("%s of %s span more than %d pages, raise the page limit", stream, fullName, maxPages),
	}
}

func sourceError(resp *gogithub.Response, err error) error {
	var (
		rateErr  *gogithub.RateLimitError
		abuseErr *gogithub.AbuseRateLimitError
		apiErr   *gogithub.ErrorResponse
	)

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	message := err.Error()
	switch {
	case errors.As(err, &rateErr):
		message = rateErr.Message
	case errors.As(err, &abuseErr):
		message = abuseErr.Message
	case errors.As(err, &apiErr):
		message = apiErr.Message
	}

	return &SourceUnavailableError{Status: status, Message: message}
}

func toRelease(item *gogithub.RepositoryRelease) (Release, error) {
	raw, err := rawPayload("release", item)
	if err != nil {
		return Release{}, err
	}

	release := Release{
		ID:         item.GetID(),
		TagName:    item.GetTagName(),
		Name:       item.GetName(),
		Body:       item.GetBody(),
		HTMLURL:    item.GetHTMLURL(),
		Draft:      item.GetDraft(),
		Prerelease: item.GetPrerelease(),
		Author:     User{Login: item.GetAuthor().GetLogin()},
		CreatedAt:  item.GetCreatedAt().Time,
		Raw:        raw,
	}
	if item.PublishedAt != nil {
		publishedAt := item.PublishedAt.Time
		release.PublishedAt = &publishedAt
	}

	return release, nil
}

func toIssue(item *gogithub.Issue) (Issue, error) {
	raw, err := rawPayload("issue", item)
	if err != nil {
		return Issue{}, err
	}

	return Issue{
		ID:        item.GetID(),
		Number:    item.GetNumber(),
		Title:     item.GetTitle(),
		Body:      item.GetBody(),
		State:     item.GetState(),
		HTMLURL:   item.GetHTMLURL(),
		User:      User{Login: item.GetUser().GetLogin()},
		CreatedAt: item.GetCreatedAt().Time,
		UpdatedAt: item.GetUpdatedAt().Time,
		Raw:       raw,
	}, nil
}

func toPullRequest(item *gogithub.PullRequest) (PullRequest, error) {
	raw, err := rawPayload("pull request", item)
	if err != nil {
		return PullRequest{}, err
	}

	pull := PullRequest{
		ID:        item.GetID(),
		Number:    item.GetNumber(),
		Title:     item.GetTitle(),
		Body:      item.GetBody(),
		State:     item.GetState(),
		HTMLURL:   item.GetHTMLURL(),
		Draft:     item.GetDraft(),
		User:      User{Login: item.GetUser().GetLogin()},
		CreatedAt: item.GetCreatedAt().Time,
		UpdatedAt: item.GetUpdatedAt().Time,
		Raw:       raw,
	}
	if item.MergedAt != nil {
		mergedAt := item.MergedAt.Time
		pull.MergedAt = &mergedAt
	}

	return pull, nil
}

func rawPayload(kind string, item any) (json.RawMessage, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, &SourceUnavailableError{Message: fmt.Sprintf("failed to encode %s: %v", kind, err)}
	}
	return raw, nil
}

func splitFullName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &SourceUnavailableError{Message: fmt.Sprintf("invalid repository name %q, expected owner/repo", fullName)}
	}
	return parts[0], parts[1], nil
}
