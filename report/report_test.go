package report

import (
	"testing"
	"time"

	"aegis/core"
	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type reportFixture struct {
	reporter *Reporter
	events   *storage.SQLiteEventStorage
	tickets  *storage.SQLiteTicketStorage
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	s, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	events := storage.NewSQLiteEventStorage(s, logger)
	tickets := storage.NewSQLiteTicketStorage(s, logger)
	return &reportFixture{
		reporter: NewReporter(events, tickets, logger),
		events:   events,
		tickets:  tickets,
	}
}

func (f *reportFixture) addEvent(t *testing.T, level int, ts time.Time) {
	t.Helper()
	require.NoError(t, f.events.CreateEvent(&core.LogEvent{
		AlertID:   "a",
		Level:     level,
		Agent:     "web-01",
		Timestamp: ts,
	}))
}

func TestSeverityDistribution(t *testing.T) {
	f := newReportFixture(t)
	now := time.Now().UTC()

	f.addEvent(t, 2, now)
	f.addEvent(t, 5, now)
	f.addEvent(t, 5, now)
	f.addEvent(t, 9, now)
	f.addEvent(t, 11, now)

	dist, err := f.reporter.SeverityDistribution()
	require.NoError(t, err)
	require.Len(t, dist, 4)
	assert.Equal(t, core.BandLow, dist[0].Band)
	assert.Equal(t, int64(1), dist[0].Count)
	assert.Equal(t, int64(2), dist[1].Count)
	assert.Equal(t, int64(1), dist[2].Count)
	assert.Equal(t, core.BandCritical, dist[3].Band)
	assert.Equal(t, int64(1), dist[3].Count)
}

func TestSeverityDistributionEmpty(t *testing.T) {
	f := newReportFixture(t)

	dist, err := f.reporter.SeverityDistribution()
	require.NoError(t, err)
	require.Len(t, dist, 4, "all bands present even with no data")
	for _, sc := range dist {
		assert.Equal(t, int64(0), sc.Count)
	}
}

func TestTimelineBuckets(t *testing.T) {
	f := newReportFixture(t)
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	f.addEvent(t, 5, base.Add(1*time.Minute))
	f.addEvent(t, 5, base.Add(9*time.Minute))
	f.addEvent(t, 5, base.Add(12*time.Minute))
	f.addEvent(t, 5, base.Add(45*time.Minute))

	timeline, err := f.reporter.Timeline()
	require.NoError(t, err)
	require.Len(t, timeline, 3)

	assert.Equal(t, "14:00", timeline[0].Label)
	assert.Equal(t, int64(2), timeline[0].Count)
	assert.Equal(t, "14:10", timeline[1].Label)
	assert.Equal(t, int64(1), timeline[1].Count)
	assert.Equal(t, "14:40", timeline[2].Label)
	assert.Equal(t, int64(1), timeline[2].Count)
}

func TestStatusDistribution(t *testing.T) {
	f := newReportFixture(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.tickets.CreateTicket(&core.Ticket{AlertID: "a", Severity: core.SeverityLow}))
	}
	resolved := &core.Ticket{AlertID: "b", Severity: core.SeverityHigh}
	require.NoError(t, f.tickets.CreateTicket(resolved))
	resolved.Status = core.TicketStatusResolved
	require.NoError(t, f.tickets.UpdateTicketWithHistory(resolved, nil))

	dist, err := f.reporter.StatusDistribution()
	require.NoError(t, err)
	require.Len(t, dist, 3)
	assert.Equal(t, core.TicketStatusNew, dist[0].Status)
	assert.Equal(t, int64(2), dist[0].Count)
	assert.Equal(t, int64(0), dist[1].Count)
	assert.Equal(t, int64(1), dist[2].Count)
}
