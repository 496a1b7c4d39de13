package google

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.RemoteFactory = (*Factory)(nil)

// Factory builds Google API clients bound to one access token. The rate
// limiters are shared across all clients the factory produces so pacing
// holds process-wide.
type Factory struct {
	calendarLimiter *RateLimiter
	tasksLimiter    *RateLimiter
	httpClient      *http.Client
}

// NewFactory creates a client factory with default rate limits.
func NewFactory() *Factory {
	return &Factory{
		calendarLimiter: NewRateLimiter(ServiceCalendar),
		tasksLimiter:    NewRateLimiter(ServiceTasks),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
}

// CalendarClient returns a calendar reader bound to the access token.
func (f *Factory) CalendarClient(ctx context.Context, accessToken string) (driven.CalendarClient, error) {
	svc, err := calendarapi.NewService(ctx, option.WithTokenSource(staticToken(accessToken)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return &CalendarClient{svc: svc, limiter: f.calendarLimiter}, nil
}

// TaskClient returns a task reader bound to the access token.
func (f *Factory) TaskClient(ctx context.Context, accessToken string) (driven.TaskClient, error) {
	svc, err := tasksapi.NewService(ctx, option.WithTokenSource(staticToken(accessToken)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return &TaskClient{svc: svc, limiter: f.tasksLimiter}, nil
}

// TaskWriter returns a task writer bound to the access token. The raw
// HTTP strategies reuse the factory's plain client with the token attached
// per request.
func (f *Factory) TaskWriter(ctx context.Context, accessToken string) (driven.TaskWriter, error) {
	svc, err := tasksapi.NewService(ctx, option.WithTokenSource(staticToken(accessToken)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return &TaskWriter{
		svc:         svc,
		limiter:     f.tasksLimiter,
		httpClient:  f.httpClient,
		accessToken: accessToken,
	}, nil
}

func staticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
}
