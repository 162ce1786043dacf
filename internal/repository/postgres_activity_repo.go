package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/lastseen/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用したアクティビティリポジトリ。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Upsert はレコードを識別キーでUPSERTする。
// 認証済み（UserIDあり）はuser_idの部分一意インデックス、
// 匿名（UserIDなし）はsession_idの部分一意インデックスを衝突ターゲットにする。
// record.IDが空の場合は新規UUIDを割り当てる（既存行更新時はDB側のidが維持される）。
func (r *PostgresActivityRepo) Upsert(ctx context.Context, record *model.ActivityRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	var query string
	if record.UserID != "" {
		query = `INSERT INTO user_activities
			(id, user_id, session_id, ip_address, user_agent, route_label, url, last_activity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO UPDATE SET
				session_id    = EXCLUDED.session_id,
				ip_address    = EXCLUDED.ip_address,
				user_agent    = EXCLUDED.user_agent,
				route_label   = EXCLUDED.route_label,
				url           = EXCLUDED.url,
				last_activity = EXCLUDED.last_activity,
				updated_at    = now()`
	} else {
		query = `INSERT INTO user_activities
			(id, user_id, session_id, ip_address, user_agent, route_label, url, last_activity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (session_id) WHERE user_id IS NULL DO UPDATE SET
				ip_address    = EXCLUDED.ip_address,
				user_agent    = EXCLUDED.user_agent,
				route_label   = EXCLUDED.route_label,
				url           = EXCLUDED.url,
				last_activity = EXCLUDED.last_activity,
				updated_at    = now()`
	}

	_, err := r.db.ExecContext(ctx, query,
		record.ID, nullableString(record.UserID), record.SessionID,
		record.IPAddress, record.UserAgent, record.RouteLabel, record.URL,
		record.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert activity: %w", err)
	}
	return nil
}

const activityColumns = `id, COALESCE(user_id, ''), session_id, ip_address, user_agent, route_label, url, last_activity, created_at, updated_at`

// FindLatestByUser は指定ユーザーの最新レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresActivityRepo) FindLatestByUser(ctx context.Context, userID string) (*model.ActivityRecord, error) {
	record := &model.ActivityRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+`
		 FROM user_activities
		 WHERE user_id = $1
		 ORDER BY last_activity DESC
		 LIMIT 1`,
		userID,
	).Scan(
		&record.ID, &record.UserID, &record.SessionID,
		&record.IPAddress, &record.UserAgent, &record.RouteLabel, &record.URL,
		&record.LastActivity, &record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest activity: %w", err)
	}

	return record, nil
}

// ListByUser は指定ユーザーのレコードをlast_activity降順で最大limit件返す。
func (r *PostgresActivityRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+activityColumns+`
		 FROM user_activities
		 WHERE user_id = $1
		 ORDER BY last_activity DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var records []*model.ActivityRecord
	for rows.Next() {
		record := &model.ActivityRecord{}
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.SessionID,
			&record.IPAddress, &record.UserAgent, &record.RouteLabel, &record.URL,
			&record.LastActivity, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}

	return records, nil
}

// ExistsActiveUser は指定ユーザーにlast_activity >= sinceのレコードが存在するかを返す。
func (r *PostgresActivityRepo) ExistsActiveUser(ctx context.Context, userID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_activities
			WHERE user_id = $1 AND last_activity >= $2
		 )`,
		userID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check online user: %w", err)
	}
	return exists, nil
}

// ExistsActiveSession は指定セッションにlast_activity >= sinceのレコードが存在するかを返す。
func (r *PostgresActivityRepo) ExistsActiveSession(ctx context.Context, sessionID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_activities
			WHERE session_id = $1 AND last_activity >= $2
		 )`,
		sessionID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active session: %w", err)
	}
	return exists, nil
}

// ListActiveUserIDs はlast_activity >= sinceの認証済みユーザーIDを重複なしで返す。
func (r *PostgresActivityRepo) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id
		 FROM user_activities
		 WHERE user_id IS NOT NULL AND last_activity >= $1
		 ORDER BY user_id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate online users: %w", err)
	}

	return userIDs, nil
}

// CountActiveUsers はlast_activity >= sinceの認証済みユーザー数（DISTINCT user_id）を返す。
func (r *PostgresActivityRepo) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id)
		 FROM user_activities
		 WHERE user_id IS NOT NULL AND last_activity >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}
	return count, nil
}

// DeleteOlderThan はlast_activity < cutoffの全レコードを削除し、削除件数を返す。
// タイムスタンプ条件による削除のため、実行中に書き込まれた新しい行は対象外となる。
func (r *PostgresActivityRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_activities WHERE last_activity < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activities: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// CountOlderThan はlast_activity < cutoffのレコード数を返す。
func (r *PostgresActivityRepo) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_activities WHERE last_activity < $1`,
		cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count old activities: %w", err)
	}
	return count, nil
}

// nullableString は空文字列をNULLとして扱うためのヘルパー。
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
