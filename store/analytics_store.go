package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"abfeedback/api/database"
	"abfeedback/api/models"
	"abfeedback/api/utils"
)

const analyticsSchema = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id    String,
		event_type  LowCardinality(String),
		session_id  String,
		variant     LowCardinality(String),
		timestamp   DateTime64(3, 'UTC'),
		page_path   String,
		element     String,
		offset_ms   Int64,
		referrer    String,
		user_agent  String,
		device_type LowCardinality(String),
		event_data  String
	) ENGINE = ReplacingMergeTree
	ORDER BY (variant, event_id)
`

// dedupedEvents collapses rows re-sent by later snapshots of the same session
// into one row per event_id, stamped with the first time the event was seen.
// Merges only compact eventually, so reads dedupe as well.
const dedupedEvents = `(
		SELECT event_id, event_type, session_id, variant, page_path, timestamp
		FROM analytics_events
		ORDER BY event_id, timestamp
		LIMIT 1 BY event_id
	)`

// eventNamespace seeds the name-based UUIDs used as event ids.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("abfeedback/analytics_events"))

// EventID is stable for the index-th event of a session's log. The log is
// append-only, so every snapshot maps an event to the same id.
func EventID(sessionID string, index int) string {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%s/%d", sessionID, index))).String()
}

func feedbackEventID(sessionID string) string {
	return uuid.NewSHA1(eventNamespace, []byte(sessionID+"/feedback")).String()
}

// AnalyticsStore is a write-mostly ClickHouse sink. Every behavior event and
// every feedback submission becomes one analytics_events row, which backs the
// dashboard stats queries.
type AnalyticsStore struct {
	DB *database.ClickHouseClient
}

type EventTypeCountByTime struct {
	Time      time.Time `json:"time"`
	EventType *string   `json:"eventType,omitempty"`
	Count     uint64    `json:"count"`
}

func NewAnalyticsStore(chClient *database.ClickHouseClient) *AnalyticsStore {
	return &AnalyticsStore{
		DB: chClient,
	}
}

func (s *AnalyticsStore) Name() string { return "eventstore" }

func (s *AnalyticsStore) Configured() bool {
	return s != nil && s.DB != nil && s.DB.Conn != nil
}

func (s *AnalyticsStore) EnsureSchema(ctx context.Context) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if err := s.DB.Conn.Exec(ctx, analyticsSchema); err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) SaveBehavior(ctx context.Context, rec *models.BehaviorRecord) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	return s.InsertAnalyticsEvents(ctx, FlattenBehavior(rec))
}

func (s *AnalyticsStore) SaveFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	return s.InsertAnalyticsEvents(ctx, []models.AnalyticsEvent{FlattenFeedback(rec)})
}

// FlattenBehavior turns a behavior snapshot into one row per event. Rows are
// stamped with the capture time of the snapshot; ids depend only on the
// session and the event's position in the log.
func FlattenBehavior(rec *models.BehaviorRecord) []models.AnalyticsEvent {
	ts := rec.Metadata.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rows := make([]models.AnalyticsEvent, 0, len(rec.Events))
	for i, e := range rec.Events {
		row := models.AnalyticsEvent{
			EventID:    EventID(rec.SessionID, i),
			EventType:  string(e.Type),
			SessionID:  rec.SessionID,
			Variant:    string(rec.Variant),
			Timestamp:  ts,
			PagePath:   e.PagePath,
			Element:    e.Element,
			OffsetMs:   e.OffsetMs,
			Referrer:   rec.Metadata.Referrer,
			UserAgent:  rec.Metadata.UserAgent,
			DeviceType: string(rec.Metadata.DeviceType),
		}
		if e.Value != nil {
			if data, err := json.Marshal(e.Value); err == nil {
				row.EventData = data
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func FlattenFeedback(rec *models.FeedbackRecord) models.AnalyticsEvent {
	ts := rec.Feedback.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	data, _ := json.Marshal(map[string]any{
		"rating":   rec.Feedback.Rating,
		"comment":  rec.Feedback.Comment,
		"question": rec.Feedback.Question,
		"summary":  rec.BehaviorSummary,
	})
	return models.AnalyticsEvent{
		EventID:   feedbackEventID(rec.SessionID),
		EventType: models.EventTypeFeedback,
		SessionID: rec.SessionID,
		Variant:   string(rec.Variant),
		Timestamp: ts,
		EventData: data,
	}
}

func (s *AnalyticsStore) InsertAnalyticsEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	if !s.Configured() {
		return ErrNotConfigured
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (
			event_id, event_type, session_id, variant, timestamp, page_path, element,
			offset_ms, referrer, user_agent, device_type, event_data
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.EventType,
			event.SessionID,
			event.Variant,
			event.Timestamp,
			event.PagePath,
			event.Element,
			event.OffsetMs,
			event.Referrer,
			event.UserAgent,
			event.DeviceType,
			string(event.EventData),
		)
		if err != nil {
			if abortErr := batch.Abort(); abortErr != nil {
				log.Printf("[EventStore] error aborting batch: %v", abortErr)
			}
			return fmt.Errorf("failed to append event %s to batch: %w", event.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("[EventStore] inserted %d analytics events.", len(events))
	return nil
}

// GetEventCountsOverTime buckets events by interval. Empty variant and
// eventType match all rows; a non-empty eventType adds it to the grouping.
func (s *AnalyticsStore) GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, variant models.Variant, eventTypeFilter string) ([]EventTypeCountByTime, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []interface{}{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) as time_bucket, count() as total_events", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"

	if variant != "" {
		whereClause += " AND variant = ?"
		args = append(args, string(variant))
	}

	isFilteringByType := eventTypeFilter != ""
	if isFilteringByType {
		selectCols += ", event_type"
		groupByCols += ", event_type"
		whereClause += " AND event_type = ?"
		args = append(args, eventTypeFilter)
		orderByCols += ", event_type ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, dedupedEvents, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	results := []EventTypeCountByTime{}
	for rows.Next() {
		var (
			timeBucket    time.Time
			count         uint64
			eventTypeDB   string
			currentResult EventTypeCountByTime
		)

		if isFilteringByType {
			if err := rows.Scan(&timeBucket, &count, &eventTypeDB); err != nil {
				log.Printf("[EventStore] error scanning event count row: %v", err)
				continue
			}
			currentResult.EventType = &eventTypeDB
		} else {
			if err := rows.Scan(&timeBucket, &count); err != nil {
				log.Printf("[EventStore] error scanning event count row: %v", err)
				continue
			}
		}

		currentResult.Time = timeBucket
		currentResult.Count = count
		results = append(results, currentResult)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts over time query: %w", err)
	}

	return results, nil
}

func (s *AnalyticsStore) GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time, variant models.Variant) ([]EventTypeCountByTime, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(session_id) AS unique_sessions
		FROM %s
		WHERE timestamp >= ? AND timestamp <= ? AND (? = '' OR variant = ?)
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval, dedupedEvents)

	rows, err := s.DB.Conn.Query(ctx, query, start, end, string(variant), string(variant))
	if err != nil {
		return nil, fmt.Errorf("failed to query unique sessions over time: %w", err)
	}
	defer rows.Close()

	results := []EventTypeCountByTime{}
	for rows.Next() {
		var timeBucket time.Time
		var uniqueSessions uint64
		if err := rows.Scan(&timeBucket, &uniqueSessions); err != nil {
			log.Printf("[EventStore] error scanning unique sessions row: %v", err)
			continue
		}
		results = append(results, EventTypeCountByTime{
			Time:  timeBucket,
			Count: uniqueSessions,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique sessions: %w", err)
	}

	return results, nil
}

func (s *AnalyticsStore) GetTopNPagePaths(ctx context.Context, start, end time.Time, variant models.Variant, limit uint64) ([]models.TopPathResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT page_path, count() as view_count
		FROM ` + dedupedEvents + `
		WHERE event_type = 'view' AND timestamp >= ? AND timestamp <= ? AND (? = '' OR variant = ?)
		GROUP BY page_path
		ORDER BY view_count DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, start, end, string(variant), string(variant), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top page paths: %w", err)
	}
	defer rows.Close()

	results := []models.TopPathResult{}
	for rows.Next() {
		var pagePath string
		var count uint64
		if err := rows.Scan(&pagePath, &count); err != nil {
			log.Printf("[EventStore] error scanning top page path row: %v", err)
			continue
		}
		results = append(results, models.TopPathResult{
			PagePath: pagePath,
			Count:    count,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top page paths: %w", err)
	}

	return results, nil
}
