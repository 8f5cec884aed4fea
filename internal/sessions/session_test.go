package sessions_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/sessions"
	"sitepulse/internal/testsupport"
)

func newStitch(occurredAt time.Time) *sessions.PageViewStitch {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return &sessions.PageViewStitch{
		SiteID:      "site-1",
		SessionID:   "8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d",
		VisitorID:   "7a3e1f9c-5b2d-4e8a-9c6f-1d2e3f4a5b6c",
		StartedAt:   started,
		OccurredAt:  occurredAt,
		URL:         "https://shop.example.com/a",
		Path:        "/a",
		Referrer:    "https://www.google.com/",
		CountryCode: "DE",
		City:        "Berlin",
		DeviceType:  "desktop",
		Browser:     "Chrome",
		OS:          "Windows",
	}
}

func TestRecord_FirstPageViewCreatesSession(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, sessions.Record(dbManager, logger, newStitch(started)))

	var session sessions.Session
	require.NoError(t, dbManager.GetConnection().First(&session).Error)

	assert.Equal(t, 1, session.PageViewCount)
	assert.True(t, session.Bounced)
	assert.Equal(t, 0, session.DurationSeconds)
	assert.Equal(t, "https://shop.example.com/a", session.EntryURL)
	assert.Equal(t, "https://www.google.com/", session.EntryReferrer)
	assert.Equal(t, "https://shop.example.com/a", session.ExitURL)
	assert.Equal(t, "/a", session.ExitPath)
}

// Three page views at t=0s, t=10s, and t=40s must merge into one row
// with the entry fields pinned from the first and the exit fields
// moved to the last.
func TestRecord_StitchesSubsequentPageViews(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	first := newStitch(started)
	require.NoError(t, sessions.Record(dbManager, logger, first))

	second := newStitch(started.Add(10 * time.Second))
	second.URL = "https://shop.example.com/b"
	second.Path = "/b"
	second.Referrer = "https://shop.example.com/a"
	require.NoError(t, sessions.Record(dbManager, logger, second))

	third := newStitch(started.Add(40 * time.Second))
	third.URL = "https://shop.example.com/c"
	third.Path = "/c"
	require.NoError(t, sessions.Record(dbManager, logger, third))

	db := dbManager.GetConnection()

	var count int64
	require.NoError(t, db.Model(&sessions.Session{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var session sessions.Session
	require.NoError(t, db.First(&session).Error)

	assert.Equal(t, 3, session.PageViewCount)
	assert.False(t, session.Bounced)
	assert.Equal(t, 40, session.DurationSeconds)
	assert.Equal(t, "https://shop.example.com/a", session.EntryURL)
	assert.Equal(t, "https://www.google.com/", session.EntryReferrer)
	assert.Equal(t, "https://shop.example.com/c", session.ExitURL)
	assert.Equal(t, "/c", session.ExitPath)
}

// A replayed first event must not reset the pinned start: the conflict
// clause measures duration against the stored started_at, and entry
// fields never appear in the update list.
func TestRecord_DuplicateFirstEventKeepsPinnedStart(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, sessions.Record(dbManager, logger, newStitch(started)))

	later := newStitch(started.Add(40 * time.Second))
	later.URL = "https://shop.example.com/b"
	later.Path = "/b"
	require.NoError(t, sessions.Record(dbManager, logger, later))

	// Replay of the first event, reporting a fresher client start.
	replay := newStitch(started.Add(5 * time.Second))
	replay.StartedAt = started.Add(5 * time.Second)
	require.NoError(t, sessions.Record(dbManager, logger, replay))

	var session sessions.Session
	require.NoError(t, dbManager.GetConnection().First(&session).Error)

	assert.True(t, session.StartedAt.Equal(started))
	assert.Equal(t, "https://shop.example.com/a", session.EntryURL)
	assert.Equal(t, 3, session.PageViewCount)
	assert.False(t, session.Bounced)
	// Duration still measured from the original start.
	assert.Equal(t, 5, session.DurationSeconds)
}

func TestRecord_NegativeDurationClampsToZero(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	early := newStitch(started.Add(-10 * time.Second))
	require.NoError(t, sessions.Record(dbManager, logger, early))

	var session sessions.Session
	require.NoError(t, dbManager.GetConnection().First(&session).Error)
	assert.Equal(t, 0, session.DurationSeconds)
}

func TestRecord_SeparateSessionsStaySeparate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	first := newStitch(started)
	require.NoError(t, sessions.Record(dbManager, logger, first))

	otherSession := newStitch(started)
	otherSession.SessionID = "1c5d3b2e-7f4a-4b8c-9e6d-3f4a5b6c7d8e"
	require.NoError(t, sessions.Record(dbManager, logger, otherSession))

	otherSite := newStitch(started)
	otherSite.SiteID = "site-2"
	require.NoError(t, sessions.Record(dbManager, logger, otherSite))

	var count int64
	require.NoError(t, dbManager.GetConnection().Model(&sessions.Session{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

// Concurrent page views for one session must never lose an increment:
// the upsert merges in SQL instead of reading the row back.
func TestRecord_ConcurrentPageViewsKeepEveryCount(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stitch := newStitch(started.Add(time.Duration(i) * time.Second))
			stitch.URL = fmt.Sprintf("https://shop.example.com/p/%d", i)
			stitch.Path = fmt.Sprintf("/p/%d", i)
			errs <- sessions.Record(dbManager, logger, stitch)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var session sessions.Session
	require.NoError(t, dbManager.GetConnection().First(&session).Error)
	assert.Equal(t, writers, session.PageViewCount)
	assert.False(t, session.Bounced)
}
