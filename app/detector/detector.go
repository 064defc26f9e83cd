package detector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/gh-digest/app/database"
	"github.com/lysyi3m/gh-digest/app/github"
)

const DefaultLookback = 7 * 24 * time.Hour

type Detector struct {
	targetRepo   database.TargetRepository
	activityRepo database.ActivityRepository
	gateway      Gateway
	clock        clock.Clock
	lookback     time.Duration
	pageSize     int
	policy       TargetPolicy
}

type Option func(*Detector)

func WithPolicy(policy TargetPolicy) Option {
	return func(d *Detector) {
		d.policy = policy
	}
}

func NewDetector(
	targetRepo database.TargetRepository,
	activityRepo database.ActivityRepository,
	gateway Gateway,
	clk clock.Clock,
	lookback time.Duration,
	pageSize int,
	opts ...Option,
) *Detector {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if pageSize <= 0 {
		pageSize = 30
	}

	d := &Detector{
		targetRepo:   targetRepo,
		activityRepo: activityRepo,
		gateway:      gateway,
		clock:        clk,
		lookback:     lookback,
		pageSize:     pageSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type fetched struct {
	releases []github.Release
	issues   []github.Issue
	pulls    []github.PullRequest
}

// DetectUpdates fetches activity newer than the target's watermark and stores it. The
// returned ids are the records created by this run, releases first, then issues, then
// pull requests. Either every candidate of the run is stored or none is.
func (d *Detector) DetectUpdates(ctx context.Context, targetID string) ([]string, error) {
	target, err := d.targetRepo.GetTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}

	if target.SourceType != database.SourceTypeGitHub {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTargetType, target.SourceType)
	}

	since, err := d.since(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	pageSize := d.pageSize
	if d.policy != nil {
		if size := d.policy.PageSize(target); size > 0 {
			pageSize = size
		}
	}

	data, err := d.fetch(ctx, target.FullName, since, pageSize)
	if err != nil {
		return nil, &DetectionError{TargetID: target.ID, Err: err}
	}

	candidates := d.candidates(target, since, data)
	if d.policy != nil {
		candidates = d.policy.Filter(target, candidates)
	}

	newIDs := []string{}
	err = d.activityRepo.InTx(ctx, func(repo database.ActivityRepository) error {
		for _, candidate := range candidates {
			activity, wasNew, err := repo.Upsert(ctx, candidate)
			if err != nil {
				return fmt.Errorf("failed to upsert %s %s: %w", candidate.Kind, candidate.ExternalEventID, err)
			}
			if wasNew {
				newIDs = append(newIDs, activity.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store activities: %w", err)
	}

	slog.Debug("Detection finished",
		"target", target.Name,
		"since", since.Format(time.RFC3339),
		"candidates", len(candidates),
		"new", len(newIDs))

	return newIDs, nil
}

func (d *Detector) since(ctx context.Context, targetID string) (time.Time, error) {
	watermark, err := d.activityRepo.WatermarkFor(ctx, targetID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark: %w", err)
	}
	if watermark != nil {
		return *watermark, nil
	}
	return d.clock.Now().Add(-d.lookback), nil
}

// fetch queries the three streams concurrently and fails as soon as one of them does.
func (d *Detector) fetch(ctx context.Context, fullName string, since time.Time, pageSize int) (*fetched, error) {
	var data fetched
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		releases, err := d.gateway.ListReleases(gctx, fullName, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list releases: %w", err)
		}
		data.releases = releases
		return nil
	})

	g.Go(func() error {
		issues, err := d.gateway.ListIssues(gctx, fullName, since, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list issues: %w", err)
		}
		data.issues = issues
		return nil
	})

	g.Go(func() error {
		pulls, err := d.gateway.ListPullRequests(gctx, fullName, since, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list pull requests: %w", err)
		}
		data.pulls = pulls
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

// candidates maps source items to activity candidates, keeping only those that occurred
// strictly after since.
func (d *Detector) candidates(target *database.Target, since time.Time, data *fetched) []database.ActivityCandidate {
	var result []database.ActivityCandidate

	for _, release := range data.releases {
		occurredAt := release.EffectiveAt()
		if !occurredAt.After(since) {
			continue
		}

		title := release.Name
		if title == "" {
			title = release.TagName
		}
		version := release.TagName

		result = append(result, database.ActivityCandidate{
			TargetID:        target.ID,
			ExternalEventID: strconv.FormatInt(release.ID, 10),
			Kind:            database.ActivityKindRelease,
			Title:           title,
			Body:            release.Body,
			URL:             release.HTMLURL,
			Author:          release.Author.Login,
			Version:         &version,
			RawPayload:      string(release.Raw),
			OccurredAt:      occurredAt,
		})
	}

	for _, issue := range data.issues {
		if !issue.CreatedAt.After(since) {
			continue
		}
		result = append(result, database.ActivityCandidate{
			TargetID:        target.ID,
			ExternalEventID: strconv.FormatInt(issue.ID, 10),
			Kind:            database.ActivityKindIssue,
			Title:           issue.Title,
			Body:            issue.Body,
			URL:             issue.HTMLURL,
			Author:          issue.User.Login,
			RawPayload:      string(issue.Raw),
			OccurredAt:      issue.CreatedAt,
		})
	}

	for _, pull := range data.pulls {
		if !pull.CreatedAt.After(since) {
			continue
		}
		result = append(result, database.ActivityCandidate{
			TargetID:        target.ID,
			ExternalEventID: strconv.FormatInt(pull.ID, 10),
			Kind:            database.ActivityKindPullRequest,
			Title:           pull.Title,
			Body:            pull.Body,
			URL:             pull.HTMLURL,
			Author:          pull.User.Login,
			RawPayload:      string(pull.Raw),
			OccurredAt:      pull.CreatedAt,
		})
	}

	return result
}
