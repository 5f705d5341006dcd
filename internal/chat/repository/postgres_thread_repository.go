package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"realtime_chat_service/internal/chat/domain"
)

// threadSchema chat_thread / chat_message tables. Pair ordering is enforced in Go, the
// column collation may not match byte order so there is no CHECK constraint.
const threadSchema = `
CREATE TABLE IF NOT EXISTS chat_thread (
	id            BIGSERIAL PRIMARY KEY,
	first_person  VARCHAR(64) NOT NULL,
	second_person VARCHAR(64) NOT NULL,
	updated       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (first_person, second_person)
);
CREATE INDEX IF NOT EXISTS chat_thread_second_person_idx ON chat_thread (second_person);
CREATE TABLE IF NOT EXISTS chat_message (
	id        BIGSERIAL PRIMARY KEY,
	thread_id BIGINT NOT NULL REFERENCES chat_thread (id) ON DELETE CASCADE,
	sender_id VARCHAR(64) NOT NULL,
	message   TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_message_thread_id_idx ON chat_message (thread_id, id);
`

type postgresThreadRepository struct {
	db *pgxpool.Pool
}

// NewPostgresThreadRepository create a ThreadRepository on PostgreSQL
func NewPostgresThreadRepository(db *pgxpool.Pool) ThreadRepository {
	return &postgresThreadRepository{db: db}
}

// MigrateThreadSchema creates the thread tables when missing
func MigrateThreadSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, threadSchema); err != nil {
		return domain.StoreError("migrate thread schema", err)
	}
	return nil
}

func (r *postgresThreadRepository) GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error) {
	first, second, err := validatePair(userA, userB)
	if err != nil {
		return nil, err
	}

	// 併發建立由 unique constraint 收斂
	if _, err := r.db.Exec(ctx, `
		INSERT INTO chat_thread (first_person, second_person, updated)
		VALUES ($1, $2, now())
		ON CONFLICT (first_person, second_person) DO NOTHING`, first, second); err != nil {
		return nil, domain.StoreError("create thread", err)
	}

	rows, err := r.db.Query(ctx, threadSelect+`
		WHERE t.first_person = $1 AND t.second_person = $2`, first, second)
	if err != nil {
		return nil, domain.StoreError("get thread", err)
	}
	threads, err := scanThreads(rows)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return nil, domain.ErrThreadNotFound
	}
	return &threads[0], nil
}

func (r *postgresThreadRepository) GetThread(ctx context.Context, threadID int64) (*domain.Thread, error) {
	rows, err := r.db.Query(ctx, threadSelect+` WHERE t.id = $1`, threadID)
	if err != nil {
		return nil, domain.StoreError("get thread", err)
	}
	threads, err := scanThreads(rows)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return nil, domain.ErrThreadNotFound
	}
	return &threads[0], nil
}

func (r *postgresThreadRepository) AppendMessage(ctx context.Context, threadID int64, senderID, body string) (*domain.Message, error) {
	text, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError("append message", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// row lock serializes appends of the same thread, id and timestamp then follow commit order
	var updated time.Time
	err = tx.QueryRow(ctx, `SELECT updated FROM chat_thread WHERE id = $1 FOR UPDATE`, threadID).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrThreadNotFound
	}
	if err != nil {
		return nil, domain.StoreError("lock thread", err)
	}

	msg := domain.Message{ThreadID: threadID, SenderID: senderID, Body: text}
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_message (thread_id, sender_id, message, timestamp)
		VALUES ($1, $2, $3, GREATEST(clock_timestamp(), $4))
		RETURNING id, timestamp`, threadID, senderID, text, updated).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return nil, domain.StoreError("insert message", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE chat_thread SET updated = $2 WHERE id = $1`, threadID, msg.Timestamp); err != nil {
		return nil, domain.StoreError("touch thread", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StoreError("commit message", err)
	}

	msg.Timestamp = msg.Timestamp.UTC()
	return &msg, nil
}

func (r *postgresThreadRepository) ListMessages(ctx context.Context, threadID int64, cursor string, limit int) (*domain.MessagePage, error) {
	after, err := domain.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = ClampPageSize(limit)

	if _, err := r.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	// 多取一筆判斷是否還有下一頁
	rows, err := r.db.Query(ctx, `
		SELECT id, thread_id, sender_id, message, timestamp
		FROM chat_message
		WHERE thread_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`, threadID, after, limit+1)
	if err != nil {
		return nil, domain.StoreError("list messages", err)
	}
	defer rows.Close()

	page := &domain.MessagePage{Messages: make([]domain.Message, 0, limit)}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.Timestamp); err != nil {
			return nil, domain.StoreError("scan message", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		page.Messages = append(page.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list messages", err)
	}

	if len(page.Messages) > limit {
		page.Messages = page.Messages[:limit]
		page.NextCursor = domain.EncodeCursor(page.Messages[limit-1].ID)
	}
	return page, nil
}

func (r *postgresThreadRepository) ListThreadsForUser(ctx context.Context, userID string) ([]domain.Thread, error) {
	rows, err := r.db.Query(ctx, threadSelect+`
		WHERE t.first_person = $1 OR t.second_person = $1
		ORDER BY t.updated DESC, t.id DESC`, userID)
	if err != nil {
		return nil, domain.StoreError("list threads", err)
	}
	return scanThreads(rows)
}

func (r *postgresThreadRepository) LastMessage(ctx context.Context, threadID int64) (*domain.LastMessage, error) {
	t, err := r.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return t.LastMessage, nil
}

const threadSelect = `
	SELECT t.id, t.first_person, t.second_person, t.updated, lm.message, lm.timestamp, lm.sender_id
	FROM chat_thread t
	LEFT JOIN LATERAL (
		SELECT m.message, m.timestamp, m.sender_id
		FROM chat_message m
		WHERE m.thread_id = t.id
		ORDER BY m.id DESC
		LIMIT 1
	) lm ON true`

func scanThreads(rows pgx.Rows) ([]domain.Thread, error) {
	defer rows.Close()

	threads := make([]domain.Thread, 0)
	for rows.Next() {
		var (
			t      domain.Thread
			body   *string
			ts     *time.Time
			sender *string
		)
		if err := rows.Scan(&t.ID, &t.FirstPerson, &t.SecondPerson, &t.Updated, &body, &ts, &sender); err != nil {
			return nil, domain.StoreError("scan thread", err)
		}
		t.Updated = t.Updated.UTC()
		if body != nil && ts != nil && sender != nil {
			t.LastMessage = &domain.LastMessage{Message: *body, Timestamp: ts.UTC(), UserID: *sender}
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("scan thread", err)
	}
	return threads, nil
}
