package report

import (
	"fmt"
	"sort"
	"time"

	"aegis/core"
	"aegis/storage"

	"go.uber.org/zap"
)

// TimelineBucketSize is the fixed width of every activity timeline bucket.
const TimelineBucketSize = 10 * time.Minute

// SeverityCount is one slice of the severity distribution.
type SeverityCount struct {
	Band  core.SeverityBand `json:"band"`
	Count int64             `json:"count"`
}

// TimelineBucket is one fixed-width slot of the activity timeline.
type TimelineBucket struct {
	Label string    `json:"label"` // "HH:MM", start of bucket, UTC
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// StatusCount is one slice of the ticket status distribution.
type StatusCount struct {
	Status core.TicketStatus `json:"status"`
	Count  int64             `json:"count"`
}

// Reporter builds the dashboard aggregation views from storage.
type Reporter struct {
	events  storage.EventStorageInterface
	tickets storage.TicketStorageInterface
	logger  *zap.SugaredLogger
}

// NewReporter creates a reporter over the given stores.
func NewReporter(events storage.EventStorageInterface, tickets storage.TicketStorageInterface, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		events:  events,
		tickets: tickets,
		logger:  logger,
	}
}

// SeverityDistribution counts events per severity band, in band order. Bands
// with no events appear with a zero count so charts always have four slices.
func (r *Reporter) SeverityDistribution() ([]SeverityCount, error) {
	counts, err := r.events.CountEventsByBand()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate severity distribution: %w", err)
	}

	out := make([]SeverityCount, 0, len(core.SeverityBands))
	for _, band := range core.SeverityBands {
		out = append(out, SeverityCount{Band: band, Count: counts[band]})
	}
	return out, nil
}

// Timeline buckets event activity into fixed 10 minute slots, oldest first.
// Only buckets with activity are returned; the label is the bucket's start
// time of day in UTC.
func (r *Reporter) Timeline() ([]TimelineBucket, error) {
	counts, err := r.events.CountEventsByMinute(TimelineBucketSize)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate timeline: %w", err)
	}

	out := make([]TimelineBucket, 0, len(counts))
	for start, count := range counts {
		out = append(out, TimelineBucket{
			Label: fmt.Sprintf("%02d:%02d", start.Hour(), start.Minute()),
			Start: start,
			Count: count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// StatusDistribution counts tickets per workflow status, in lifecycle order.
func (r *Reporter) StatusDistribution() ([]StatusCount, error) {
	counts, err := r.tickets.CountTicketsByStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ticket status distribution: %w", err)
	}

	statuses := []core.TicketStatus{core.TicketStatusNew, core.TicketStatusInProgress, core.TicketStatusResolved}
	out := make([]StatusCount, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, StatusCount{Status: status, Count: counts[status]})
	}
	return out, nil
}
