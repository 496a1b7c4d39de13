package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestTaskContentEquals(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mirror := &MirroredTask{
		Title:   "Write report",
		Notes:   "quarterly numbers",
		Status:  "needsAction",
		DueDate: ptrTime(due),
	}

	remote := RemoteTask{
		Title:  "Write report",
		Notes:  "quarterly numbers",
		Status: "needsAction",
		Due:    ptrTime(due),
	}
	assert.True(t, mirror.ContentEquals(remote))

	remote.Due = ptrTime(due.AddDate(0, 0, 1))
	assert.False(t, mirror.ContentEquals(remote))

	remote.Due = nil
	assert.False(t, mirror.ContentEquals(remote))
}

func TestTaskDivergesFrom(t *testing.T) {
	mirror := &MirroredTask{Title: "A", Status: "needsAction"}

	assert.False(t, mirror.DivergesFrom(RemoteTask{Title: "A", Status: "needsAction"}))
	assert.True(t, mirror.DivergesFrom(RemoteTask{Title: "B", Status: "needsAction"}))
	assert.True(t, mirror.DivergesFrom(RemoteTask{Title: "A", Status: "completed"}))
	assert.True(t, mirror.DivergesFrom(RemoteTask{Title: "A", Status: "needsAction", Notes: "new"}))
}

func TestEventContentEquals(t *testing.T) {
	start := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mirror := &MirroredEvent{
		Title:     "Standup",
		StartTime: start,
		EndTime:   end,
		Status:    "confirmed",
		Attendees: []Attendee{{Email: "a@example.com"}},
	}

	remote := RemoteEvent{
		Title:     "Standup",
		Start:     start,
		End:       end,
		Status:    "confirmed",
		Attendees: []Attendee{{Email: "a@example.com"}},
	}
	assert.True(t, mirror.ContentEquals(remote))

	remote.Attendees = append(remote.Attendees, Attendee{Email: "b@example.com"})
	assert.False(t, mirror.ContentEquals(remote))
}

func TestRemoteEventCancelled(t *testing.T) {
	assert.True(t, RemoteEvent{Status: "cancelled"}.Cancelled())
	assert.False(t, RemoteEvent{Status: "confirmed"}.Cancelled())
}

func TestParseSyncType(t *testing.T) {
	for _, valid := range []string{"calendar", "tasks", "both"} {
		st, err := ParseSyncType(valid)
		assert.NoError(t, err)
		assert.Equal(t, SyncType(valid), st)
	}

	st, err := ParseSyncType("")
	assert.NoError(t, err)
	assert.Equal(t, SyncBoth, st)

	_, err = ParseSyncType("everything")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSyncCycleResultMerge(t *testing.T) {
	result := SyncCycleResult{SyncedCount: 2, Errors: []string{"one"}}
	result.Merge(SyncCycleResult{SyncedCount: 3, DeletedCount: 1, Errors: []string{"two"}})

	assert.Equal(t, 5, result.SyncedCount)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, []string{"one", "two"}, result.Errors)
}
