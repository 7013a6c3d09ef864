package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across channels and published messages
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Channels sub-query
	if q.FilterType == "" || q.FilterType == ResultChannel {
		chanWhere := "c.fts @@ " + tsQuery
		if q.FilterChannelID != "" {
			chanWhere += fmt.Sprintf(" AND c.id = $%d", argN)
			args = append(args, q.FilterChannelID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'channel'::text AS type, c.id, c.title,
				ts_headline('english', coalesce(c.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.id AS channel_id,
				ts_rank(c.fts, %s) AS rank
			FROM channels c
			WHERE %s`, tsQuery, tsQuery, chanWhere))
	}

	// Messages sub-query; drafts are never searchable
	if q.FilterType == "" || q.FilterType == ResultMessage {
		msgWhere := "m.fts @@ " + tsQuery + " AND NOT m.is_draft"
		if q.FilterChannelID != "" {
			msgWhere += fmt.Sprintf(" AND m.channel_id = $%d", argN)
			args = append(args, q.FilterChannelID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'message'::text AS type, m.id, COALESCE(u.display_name, '') AS title,
				ts_headline('english', coalesce(m.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				m.channel_id,
				ts_rank(m.fts, %s) AS rank
			FROM messages m
			LEFT JOIN users u ON u.id = m.author_id
			WHERE %s`, tsQuery, tsQuery, msgWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, channel_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ChannelID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ChannelRecord, []MessageRecord, error) {
	chanRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description
		FROM channels
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load channels: %w", err)
	}
	defer chanRows.Close()

	channels := make([]ChannelRecord, 0)
	for chanRows.Next() {
		var c ChannelRecord
		if err := chanRows.Scan(&c.ID, &c.Title, &c.Description); err != nil {
			return nil, nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, c)
	}
	if err := chanRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate channels: %w", err)
	}

	msgRows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, COALESCE(u.display_name, ''), m.content
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE NOT m.is_draft
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}
	defer msgRows.Close()

	messages := make([]MessageRecord, 0)
	for msgRows.Next() {
		var m MessageRecord
		if err := msgRows.Scan(&m.ID, &m.ChannelID, &m.AuthorName, &m.Content); err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := msgRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate messages: %w", err)
	}

	return channels, messages, nil
}
