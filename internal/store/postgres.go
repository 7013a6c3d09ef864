package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, is_external FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.IsExternal)
	if err == nil {
		role, roleErr := s.getRole(ctx, user.ID)
		if roleErr != nil {
			return User{}, roleErr
		}
		user.Role = role
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	insertUser := `
		INSERT INTO users (display_name, email)
		VALUES ($1, CONCAT(LOWER(REPLACE($1, ' ', '.')), '@local.agora.dev'))
		RETURNING id, display_name, is_external
	`
	if err := s.db.QueryRowContext(ctx, insertUser, name).Scan(&user.ID, &user.DisplayName, &user.IsExternal); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (user_id, role)
		VALUES ($1, 'member')
		ON CONFLICT (user_id) DO NOTHING
	`, user.ID); err != nil {
		return User{}, fmt.Errorf("upsert membership: %w", err)
	}

	user.Role = "member"
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, is_external FROM users WHERE id=$1`, userID).Scan(&user.ID, &user.DisplayName, &user.IsExternal)
	if err != nil {
		return User{}, err
	}
	role, err := s.getRole(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	return user, nil
}

func (s *PostgresStore) getRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM memberships WHERE user_id=$1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "viewer", nil
	}
	if err != nil {
		return "", fmt.Errorf("read role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, m.role, u.is_external
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		LEFT JOIN memberships m ON m.user_id = u.id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Role, &user.IsExternal)
	if err != nil {
		return User{}, err
	}
	if user.Role == "" {
		user.Role = "viewer"
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.description, COALESCE(c.topics::text, '[]'), c.created_by_name, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.channel_id=c.id AND NOT m.is_draft) AS message_count,
			(SELECT MAX(m.created_at) FROM messages m WHERE m.channel_id=c.id AND NOT m.is_draft) AS last_post_at
		FROM channels c
		ORDER BY c.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		var item Channel
		var topicsRaw []byte
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &topicsRaw, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &item.MessageCount, &item.LastPostAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		_ = json.Unmarshal(topicsRaw, &item.Topics)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	var item Channel
	var topicsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.description, COALESCE(c.topics::text, '[]'), c.created_by_name, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.channel_id=c.id AND NOT m.is_draft) AS message_count,
			(SELECT MAX(m.created_at) FROM messages m WHERE m.channel_id=c.id AND NOT m.is_draft) AS last_post_at
		FROM channels c
		WHERE c.id=$1
	`, channelID).Scan(&item.ID, &item.Title, &item.Description, &topicsRaw, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &item.MessageCount, &item.LastPostAt)
	if err != nil {
		return Channel{}, err
	}
	_ = json.Unmarshal(topicsRaw, &item.Topics)
	return item, nil
}

func (s *PostgresStore) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM channels WHERE id=$1)`, channelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check channel: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertChannel(ctx context.Context, channel Channel) error {
	topics := channel.Topics
	if topics == nil {
		topics = []string{}
	}
	encodedTopics, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("marshal channel topics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO channels (id, title, description, topics, created_by_name)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, channel.ID, channel.Title, channel.Description, string(encodedTopics), channel.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateChannel(ctx context.Context, channelID, title, description string, topics []string) error {
	if topics == nil {
		topics = []string{}
	}
	encodedTopics, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("marshal channel topics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE channels SET title=$2, description=$3, topics=$4::jsonb, updated_at=NOW()
		WHERE id=$1
	`, channelID, title, description, string(encodedTopics))
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteChannel(ctx context.Context, channelID string) error {
	var messageCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE channel_id=$1`, channelID).Scan(&messageCount); err != nil {
		return fmt.Errorf("count channel messages: %w", err)
	}
	if messageCount > 0 {
		return fmt.Errorf("channel contains %d messages", messageCount)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id=$1`, channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) ChannelMessageCount(ctx context.Context, channelID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE channel_id=$1`, channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count channel messages: %w", err)
	}
	return count, nil
}

const messageColumns = `m.id, m.channel_id, m.parent_id, m.author_id, COALESCE(u.display_name, ''), m.content, m.is_draft, m.is_orphaned, m.version, m.created_at, m.updated_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var item Message
	err := row.Scan(
		&item.ID,
		&item.ChannelID,
		&item.ParentID,
		&item.AuthorID,
		&item.AuthorName,
		&item.Content,
		&item.IsDraft,
		&item.IsOrphaned,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListMessages(ctx context.Context, channelID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.channel_id=$1
		ORDER BY m.created_at ASC, m.id ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	item, err := scanMessage(s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.channel_id=$1 AND m.id=$2
	`, channelID, messageID))
	if err != nil {
		return Message{}, err
	}
	return item, nil
}

// UpsertDraft inserts a draft or, when the author already has one in the same
// channel and parent scope, overwrites that draft's content in place. The
// partial unique index on (channel_id, author_id, parent_scope) makes the
// whole operation a single atomic statement.
func (s *PostgresStore) UpsertDraft(ctx context.Context, message Message) (Message, error) {
	item, err := scanMessage(s.db.QueryRowContext(ctx, `
		WITH upserted AS (
			INSERT INTO messages (id, channel_id, parent_id, author_id, content, is_draft)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, TRUE)
			ON CONFLICT (channel_id, author_id, parent_scope) WHERE is_draft
			DO UPDATE SET content=EXCLUDED.content, updated_at=NOW()
			RETURNING *
		)
		SELECT `+messageColumns+`
		FROM upserted m
		LEFT JOIN users u ON u.id = m.author_id
	`, message.ID, message.ChannelID, deref(message.ParentID), message.AuthorID, message.Content))
	if err != nil {
		return Message{}, fmt.Errorf("upsert draft: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) InsertPublishedMessage(ctx context.Context, message Message) (Message, error) {
	item, err := scanMessage(s.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO messages (id, channel_id, parent_id, author_id, content, is_draft)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, FALSE)
			RETURNING *
		)
		SELECT `+messageColumns+`
		FROM inserted m
		LEFT JOIN users u ON u.id = m.author_id
	`, message.ID, message.ChannelID, deref(message.ParentID), message.AuthorID, message.Content))
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return item, nil
}

// PublishMessage flips a draft to published and restamps created_at so the
// message sorts by its publication time. Returns false when the row is no
// longer a draft, which signals a concurrent publish.
func (s *PostgresStore) PublishMessage(ctx context.Context, channelID, messageID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_draft=FALSE, content=$3, created_at=NOW(), updated_at=NOW()
		WHERE channel_id=$1 AND id=$2 AND is_draft
	`, channelID, messageID, content)
	if err != nil {
		return false, fmt.Errorf("publish message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish message rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateDraftContent(ctx context.Context, channelID, messageID, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET content=$3, updated_at=NOW()
		WHERE channel_id=$1 AND id=$2 AND is_draft
	`, channelID, messageID, content)
	if err != nil {
		return false, fmt.Errorf("update draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update draft rows: %w", err)
	}
	return affected > 0, nil
}

// EditPublishedMessage replaces the content of a published message, bumps its
// version, and records the replaced content as a revision, all in one
// transaction. Returns false when the row is missing or still a draft.
func (s *PostgresStore) EditPublishedMessage(ctx context.Context, channelID, messageID, content, previousContent, editedBy string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin edit: %w", err)
	}
	defer tx.Rollback()

	var previousVersion int
	err = tx.QueryRowContext(ctx, `
		UPDATE messages
		SET content=$3, version=version+1, updated_at=NOW()
		WHERE channel_id=$1 AND id=$2 AND NOT is_draft
		RETURNING version - 1
	`, channelID, messageID, content).Scan(&previousVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("edit message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO message_revisions (message_id, version, content, edited_by_name)
		VALUES ($1, $2, $3, $4)
	`, messageID, previousVersion, previousContent, editedBy); err != nil {
		return false, fmt.Errorf("record revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit edit: %w", err)
	}
	return true, nil
}

// DeleteMessage removes the row and orphans its direct children. Children keep
// their parent_id so thread reconstruction can synthesize a placeholder root.
func (s *PostgresStore) DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM messages WHERE channel_id=$1 AND id=$2
	`, channelID, messageID)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete message rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_orphaned=TRUE, updated_at=NOW()
		WHERE channel_id=$1 AND parent_id=$2
	`, channelID, messageID); err != nil {
		return false, fmt.Errorf("orphan children: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListMessageRevisions(ctx context.Context, messageID string) ([]MessageRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, version, content, edited_by_name, edited_at
		FROM message_revisions
		WHERE message_id=$1
		ORDER BY version DESC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRevision, 0)
	for rows.Next() {
		var item MessageRevision
		if err := rows.Scan(&item.ID, &item.MessageID, &item.Version, &item.Content, &item.EditedBy, &item.EditedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SummaryCounts(ctx context.Context) (channels int, published int, drafts int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&channels); err != nil {
		err = fmt.Errorf("count channels: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE NOT is_draft`).Scan(&published); err != nil {
		err = fmt.Errorf("count published messages: %w", err)
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE is_draft`).Scan(&drafts); err != nil {
		err = fmt.Errorf("count drafts: %w", err)
		return
	}
	return
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
