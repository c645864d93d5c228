package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is a single listed audit_events row, including its generated ID
// and timestamp (Event itself is write-only input).
type Record struct {
	ID          string     `json:"id"`
	EventType   string     `json:"event_type"`
	LessonID    *string    `json:"lesson_id,omitempty"`
	QueryText   *string    `json:"query_text,omitempty"`
	InitiatedBy string     `json:"initiated_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListFilter narrows List's result set; zero values are unfiltered.
type ListFilter struct {
	EventType string
	From      *time.Time
	To        *time.Time
	Limit     int
}

// List returns audit events for tenant, most recent first, grounded on
// original_source/src/lore/server/routes/sharing.py's list_audit_events.
func List(ctx context.Context, pool *pgxpool.Pool, tenant string, f ListFilter) ([]Record, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenant}

	if f.EventType != "" {
		args = append(args, f.EventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, event_type, lesson_id, query_text, initiated_by, created_at
		   FROM audit_events
		  WHERE %s
		  ORDER BY created_at DESC
		  LIMIT $%d`,
		joinAnd(where), len(args),
	)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.EventType, &r.LessonID, &r.QueryText, &r.InitiatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit events: %w", err)
	}
	return records, nil
}

// EventTypeCounts returns a map of event_type to row count for tenant (the
// sharing stats endpoint's auditSummary, spec §4.7).
func EventTypeCounts(ctx context.Context, pool *pgxpool.Pool, tenant string) (map[string]int, error) {
	rows, err := pool.Query(ctx,
		`SELECT event_type, count(*) FROM audit_events WHERE tenant_id = $1 GROUP BY event_type`,
		tenant,
	)
	if err != nil {
		return nil, fmt.Errorf("counting audit events by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scanning audit event count: %w", err)
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}
