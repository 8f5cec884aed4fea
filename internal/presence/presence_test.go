package presence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/presence"
	"sitepulse/internal/testsupport"
)

const liveWindow = 5 * time.Minute

func newHeartbeat(visitorID, path string, seenAt time.Time) *presence.Heartbeat {
	return &presence.Heartbeat{
		SiteID:      "site-1",
		VisitorID:   visitorID,
		SessionID:   "8b4f2a0d-6c3e-4f9b-8d7a-2e3f4a5b6c7d",
		SeenAt:      seenAt,
		Path:        path,
		CountryCode: "DE",
		City:        "Berlin",
		Latitude:    52.52,
		Longitude:   13.405,
		DeviceType:  "desktop",
	}
}

func TestTouch_UpsertsOneRowPerVisitor(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-1", "/a", now)))
	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-1", "/b", now.Add(time.Minute))))

	db := dbManager.GetConnection()

	var count int64
	require.NoError(t, db.Model(&presence.Presence{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var row presence.Presence
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "/b", row.CurrentPath)
	assert.True(t, row.LastSeen.Equal(now.Add(time.Minute)))
}

func TestTouch_SameVisitorOnTwoSites(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-1", "/a", now)))

	other := newHeartbeat("visitor-1", "/a", now)
	other.SiteID = "site-2"
	require.NoError(t, presence.Touch(dbManager, logger, other))

	var count int64
	require.NoError(t, dbManager.GetConnection().Model(&presence.Presence{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCountLive_FiltersByWindow(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-live", "/a", now.Add(-time.Minute))))
	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-edge", "/b", now.Add(-liveWindow))))
	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-stale", "/c", now.Add(-liveWindow-time.Second))))

	count, err := presence.CountLive(dbManager.GetConnection(), "site-1", now, liveWindow)
	require.NoError(t, err)
	// The boundary sighting still counts; one second past it does not.
	assert.EqualValues(t, 2, count)
}

func TestCountLive_ScopedBySite(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-1", "/a", now)))
	other := newHeartbeat("visitor-2", "/a", now)
	other.SiteID = "site-2"
	require.NoError(t, presence.Touch(dbManager, logger, other))

	count, err := presence.CountLive(dbManager.GetConnection(), "site-1", now, liveWindow)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	all, err := presence.CountLive(dbManager.GetConnection(), "", now, liveWindow)
	require.NoError(t, err)
	assert.EqualValues(t, 2, all)
}

func TestLiveVisitors_MostRecentFirst(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-old", "/a", now.Add(-2*time.Minute))))
	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-new", "/b", now.Add(-time.Minute))))
	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-gone", "/c", now.Add(-time.Hour))))

	rows, err := presence.LiveVisitors(dbManager.GetConnection(), "site-1", now, liveWindow, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "visitor-new", rows[0].VisitorID)
	assert.Equal(t, "visitor-old", rows[1].VisitorID)
	assert.Equal(t, "Berlin", rows[0].City)
}

func TestPrune_DeletesOnlyStaleRows(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-live", "/a", now)))
	require.NoError(t, presence.Touch(dbManager, logger, newHeartbeat("visitor-stale", "/b", now.Add(-48*time.Hour))))

	deleted, err := presence.Prune(dbManager, logger, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var count int64
	require.NoError(t, dbManager.GetConnection().Model(&presence.Presence{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
