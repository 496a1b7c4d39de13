package google

import (
	"context"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure CalendarClient implements the interface.
var _ driven.CalendarClient = (*CalendarClient)(nil)

// eventPageSize is the API page size for event listings.
const eventPageSize = 250

// CalendarClient reads calendar state through the Google Calendar API.
type CalendarClient struct {
	svc     *calendarapi.Service
	limiter *RateLimiter
}

// ListCalendars returns the calendars visible to the account.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]domain.RemoteCalendar, error) {
	var result []domain.RemoteCalendar
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			if IsRateLimited(err) {
				c.limiter.RecordRateLimitError(0)
			}
			return nil, wrapErr(err)
		}

		for _, item := range resp.Items {
			result = append(result, domain.RemoteCalendar{
				ID:      item.Id,
				Title:   item.Summary,
				Primary: item.Primary,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return result, nil
		}
	}
}

// ListEvents returns every event in the calendar within the window.
// Recurring events are expanded into instances and cancelled events are
// included so deletions can be tracked.
func (c *CalendarClient) ListEvents(ctx context.Context, calendarID string, window domain.SyncWindow) ([]domain.RemoteEvent, error) {
	var result []domain.RemoteEvent
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Events.List(calendarID).
			TimeMin(window.Start.Format(time.RFC3339)).
			TimeMax(window.End.Format(time.RFC3339)).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(eventPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			if IsRateLimited(err) {
				c.limiter.RecordRateLimitError(0)
			}
			return nil, wrapErr(err)
		}

		for _, item := range resp.Items {
			if item == nil || item.Id == "" {
				continue
			}
			result = append(result, toRemoteEvent(item, calendarID))
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return result, nil
		}
	}
}

// toRemoteEvent normalizes a Google Calendar event.
func toRemoteEvent(event *calendarapi.Event, calendarID string) domain.RemoteEvent {
	start, end, allDay := extractEventTimes(event)

	return domain.RemoteEvent{
		ID:            event.Id,
		CalendarID:    calendarID,
		Title:         event.Summary,
		Description:   event.Description,
		Location:      event.Location,
		Start:         start,
		End:           end,
		AllDay:        allDay,
		Status:        event.Status,
		Attendees:     toAttendees(event.Attendees),
		ConferenceURI: extractConferenceURI(event),
		UpdatedAt:     parseTimestamp(event.Updated),
	}
}

// extractEventTimes parses start and end. An event carrying only a date is
// an all-day event.
func extractEventTimes(event *calendarapi.Event) (start, end time.Time, allDay bool) {
	if event.Start != nil {
		if event.Start.DateTime != "" {
			start, _ = time.Parse(time.RFC3339, event.Start.DateTime)
		} else if event.Start.Date != "" {
			start, _ = time.Parse("2006-01-02", event.Start.Date)
			allDay = true
		}
	}
	if event.End != nil {
		if event.End.DateTime != "" {
			end, _ = time.Parse(time.RFC3339, event.End.DateTime)
		} else if event.End.Date != "" {
			end, _ = time.Parse("2006-01-02", event.End.Date)
		}
	}
	return start, end, allDay
}

func toAttendees(attendees []*calendarapi.EventAttendee) []domain.Attendee {
	if len(attendees) == 0 {
		return nil
	}
	result := make([]domain.Attendee, 0, len(attendees))
	for _, a := range attendees {
		if a == nil {
			continue
		}
		result = append(result, domain.Attendee{
			Email:     a.Email,
			Name:      a.DisplayName,
			Organizer: a.Organizer,
			Response:  a.ResponseStatus,
		})
	}
	return result
}

// extractConferenceURI returns the structured video entry point, if any.
func extractConferenceURI(event *calendarapi.Event) string {
	if event.ConferenceData == nil {
		return ""
	}
	for _, ep := range event.ConferenceData.EntryPoints {
		if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
