// Package domain defines the activity model, the error taxonomy and the
// aggregator that turns the activity API's collection into derived views.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"example.com/fitness/internal/observability"
)

// Principal is the subset of a session needed to authenticate API calls.
type Principal struct {
	Token  string
	UserID string
}

// SessionSource exposes the current principal without granting write access
// to the session.
type SessionSource interface {
	Principal() (Principal, bool)
}

// ActivityAPI captures the remote activity operations.
type ActivityAPI interface {
	ListActivities(ctx context.Context, p Principal) ([]Activity, error)
	CreateActivity(ctx context.Context, p Principal, draft Draft) (*Activity, error)
	GetActivityDetail(ctx context.Context, p Principal, id string) (*ActivityDetail, error)
}

// DetailCache holds recommendation details between requests. Keys are
// scoped to the user.
type DetailCache interface {
	Get(key string) (*ActivityDetail, bool)
	Put(key string, detail *ActivityDetail)
	Clear()
}

// Snapshot pairs an activity collection with the view derived from it.
type Snapshot struct {
	Activities []Activity    `json:"activities"`
	View       AggregateView `json:"view"`
}

// Option configures optional behaviour for the Aggregator.
type Option func(*Aggregator)

// WithRules overrides the achievement rules.
func WithRules(rules []AchievementRule) Option {
	return func(a *Aggregator) {
		if rules != nil {
			a.rules = rules
		}
	}
}

// WithLogger overrides the logger used to report failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithDetailCache caches successful recommendation lookups.
func WithDetailCache(cache DetailCache) Option {
	return func(a *Aggregator) {
		a.details = cache
	}
}

// Aggregator fetches the authenticated user's activities and derives views.
type Aggregator struct {
	api      ActivityAPI
	sessions SessionSource
	rules    []AchievementRule
	logger   *slog.Logger
	details  DetailCache

	mu      sync.Mutex
	issued  uint64
	applied uint64
	last    Snapshot
}

// NewAggregator constructs an Aggregator.
func NewAggregator(api ActivityAPI, sessions SessionSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		api:      api,
		sessions: sessions,
		rules:    DefaultAchievementRules(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.last = Snapshot{Activities: []Activity{}, View: ComputeAggregate(nil, a.rules)}
	return a
}

// Rules returns the achievement rules in effect.
func (a *Aggregator) Rules() []AchievementRule {
	return a.rules
}

func (a *Aggregator) principal(op string) (Principal, error) {
	p, ok := a.sessions.Principal()
	if !ok || p.Token == "" {
		return Principal{}, &AuthError{Op: op, Err: ErrNoSession}
	}
	return p, nil
}

// FetchActivities returns the activity collection in server order.
func (a *Aggregator) FetchActivities(ctx context.Context) ([]Activity, error) {
	p, err := a.principal("fetch activities")
	if err != nil {
		return nil, err
	}
	activities, err := a.api.ListActivities(ctx, p)
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []Activity{}
	}
	return activities, nil
}

// SubmitActivity validates the draft before sending it. Nothing is cached;
// callers re-fetch to observe the new activity.
func (a *Aggregator) SubmitActivity(ctx context.Context, draft Draft) (*Activity, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	p, err := a.principal("submit activity")
	if err != nil {
		return nil, err
	}
	return a.api.CreateActivity(ctx, p, draft)
}

// SubmitAndRefresh submits a draft, waits for the API to confirm it, then
// refreshes the view.
func (a *Aggregator) SubmitAndRefresh(ctx context.Context, draft Draft) (*Activity, Snapshot, error) {
	created, err := a.SubmitActivity(ctx, draft)
	if err != nil {
		return nil, a.Last(), err
	}
	snap, err := a.Refresh(ctx)
	if err != nil {
		return created, snap, fmt.Errorf("activity %s saved but refresh failed: %w", created.ID, err)
	}
	return created, snap, nil
}

// FetchActivityDetail returns one activity with its recommendation.
func (a *Aggregator) FetchActivityDetail(ctx context.Context, id string) (*ActivityDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Fields: []string{"id"}, Reason: "required"}
	}
	p, err := a.principal("fetch activity detail")
	if err != nil {
		return nil, err
	}

	key := p.UserID + "/" + id
	if a.details != nil {
		if cached, ok := a.details.Get(key); ok {
			return cached, nil
		}
	}
	detail, err := a.api.GetActivityDetail(ctx, p, id)
	if err != nil {
		return nil, err
	}
	// Recommendations are generated asynchronously; only a finished one is kept.
	if a.details != nil && detail != nil && strings.TrimSpace(detail.Recommendation) != "" {
		a.details.Put(key, detail)
	}
	return detail, nil
}

// Compute derives the aggregate view using the configured rules.
func (a *Aggregator) Compute(activities []Activity) AggregateView {
	return ComputeAggregate(activities, a.rules)
}

// Refresh fetches and recomputes. On failure the previous snapshot is
// returned with the error. A response that arrives after a newer one has
// been applied is discarded.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	a.issued++
	seq := a.issued
	a.mu.Unlock()

	activities, err := a.FetchActivities(ctx)
	if err != nil {
		a.logger.Warn("activity refresh failed", "error", err)
		return a.Last(), err
	}
	snap := Snapshot{Activities: activities, View: a.Compute(activities)}

	a.mu.Lock()
	defer a.mu.Unlock()
	if seq <= a.applied {
		a.logger.Debug("discarding stale activity response", "seq", seq, "applied", a.applied)
		return a.last, nil
	}
	a.applied = seq
	a.last = snap
	observability.RecordRefresh(time.Now())
	return snap, nil
}

// Last returns the most recently applied snapshot.
func (a *Aggregator) Last() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Reset drops the cached snapshot and details, e.g. after logout.
func (a *Aggregator) Reset() {
	if a.details != nil {
		a.details.Clear()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = a.issued
	a.last = Snapshot{Activities: []Activity{}, View: ComputeAggregate(nil, a.rules)}
}
