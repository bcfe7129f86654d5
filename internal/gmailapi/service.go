package gmailapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	defaultPageSize  = 100
	defaultPageDelay = 100 * time.Millisecond

	// Retry policy: 3 attempts total, exponential backoff starting at 2s
	// doubling up to a 10s cap.
	maxAttempts      = 3
	defaultRetryInit = 2 * time.Second
	defaultRetryCap  = 10 * time.Second
)

// api abstracts the Gmail operations the service depends on so the
// pagination, retry and labeling logic can be tested against a fake.
type api interface {
	listMessages(ctx context.Context, query, pageToken string, pageSize int64) (*gmail.ListMessagesResponse, error)
	getMessage(ctx context.Context, id string) (*gmail.Message, error)
	listLabels(ctx context.Context) (*gmail.ListLabelsResponse, error)
	createLabel(ctx context.Context, label *gmail.Label) (*gmail.Label, error)
	modifyMessage(ctx context.Context, id string, req *gmail.ModifyMessageRequest) error
}

// usersAPI is the production api implementation over gmail.UsersService.
// The authenticated user is always addressed as "me".
type usersAPI struct {
	users *gmail.UsersService
}

func (a *usersAPI) listMessages(ctx context.Context, query, pageToken string, pageSize int64) (*gmail.ListMessagesResponse, error) {
	req := a.users.Messages.List("me").Q(query).MaxResults(pageSize)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}
	return req.Context(ctx).Do()
}

func (a *usersAPI) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	return a.users.Messages.Get("me", id).Format("full").Context(ctx).Do()
}

func (a *usersAPI) listLabels(ctx context.Context) (*gmail.ListLabelsResponse, error) {
	return a.users.Labels.List("me").Context(ctx).Do()
}

func (a *usersAPI) createLabel(ctx context.Context, label *gmail.Label) (*gmail.Label, error) {
	return a.users.Labels.Create("me", label).Context(ctx).Do()
}

func (a *usersAPI) modifyMessage(ctx context.Context, id string, req *gmail.ModifyMessageRequest) error {
	_, err := a.users.Messages.Modify("me", id, req).Context(ctx).Do()
	return err
}

// Recorder records provider call metrics. Implemented by
// instrumentation.Metrics; a nil Recorder disables recording.
type Recorder interface {
	RecordProviderCall(ctx context.Context, operation string, duration time.Duration, err error)
}

// Service is a Gmail client scoped to one authenticated user.
type Service struct {
	api     api
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics Recorder

	pageSize  int64
	pageDelay time.Duration

	retryInitial time.Duration
	retryCap     time.Duration

	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize sets the page size used when listing message ids.
func WithPageSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithPageDelay sets the pause inserted between listing pages.
func WithPageDelay(d time.Duration) Option {
	return func(s *Service) { s.pageDelay = d }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches a provider-call metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithRetryBackoff overrides the retry backoff bounds. Intended for tests.
func WithRetryBackoff(initial, max time.Duration) Option {
	return func(s *Service) {
		s.retryInitial = initial
		s.retryCap = max
	}
}

// WithClock overrides the time source used for scope queries. Intended
// for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Gmail client for the user behind the given token
// source. The limiter is shared by every service in the process so all
// concurrently running jobs draw from one provider quota.
func NewService(ctx context.Context, ts oauth2.TokenSource, limiter *rate.Limiter, opts ...Option) (*Service, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return newService(&usersAPI{users: svc.Users}, limiter, opts...), nil
}

func newService(a api, limiter *rate.Limiter, opts ...Option) *Service {
	s := &Service{
		api:          a,
		limiter:      limiter,
		logger:       slog.Default(),
		pageSize:     defaultPageSize,
		pageDelay:    defaultPageDelay,
		retryInitial: defaultRetryInit,
		retryCap:     defaultRetryCap,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLimiter builds the shared provider rate limiter for the given
// per-second call ceiling.
func NewLimiter(callsPerSecond int) *rate.Limiter {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	return rate.NewLimiter(rate.Limit(callsPerSecond), callsPerSecond)
}

// record reports one provider call to the metrics recorder, if any.
func (s *Service) record(ctx context.Context, operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordProviderCall(ctx, operation, time.Since(start), err)
}
