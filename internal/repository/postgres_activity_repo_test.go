package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/lastseen/internal/model"
)

// PostgresActivityRepoはActivityRepositoryインターフェースを満たすことを検証
func TestPostgresActivityRepo_ImplementsInterface(t *testing.T) {
	var _ ActivityRepository = (*PostgresActivityRepo)(nil)
}

// NewPostgresActivityRepoが正しく初期化されることを検証
func TestNewPostgresActivityRepo_Initializes(t *testing.T) {
	repo := NewPostgresActivityRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// ActivityRecordモデルのフィールドが正しく構築されることを検証
func TestPostgresActivityRepo_RecordModel_Fields(t *testing.T) {
	now := time.Now()
	record := &model.ActivityRecord{
		ID:           "activity-id-1",
		UserID:       "user-1",
		SessionID:    "sess-1",
		IPAddress:    "203.0.113.5",
		UserAgent:    "Mozilla/5.0",
		RouteLabel:   "/users/{id}",
		URL:          "http://example.com/users/42",
		LastActivity: now,
	}

	if record.ID != "activity-id-1" {
		t.Errorf("record.ID = %q, want %q", record.ID, "activity-id-1")
	}
	if record.IsAnonymous() {
		t.Error("UserIDありのレコードは匿名ではない")
	}
	if record.DisplayRoute() != "/users/{id}" {
		t.Errorf("record.DisplayRoute() = %q, want %q", record.DisplayRoute(), "/users/{id}")
	}
}

// 匿名レコードはUserIDが空であることを検証
func TestPostgresActivityRepo_RecordModel_Anonymous(t *testing.T) {
	record := &model.ActivityRecord{
		ID:        "activity-id-2",
		SessionID: "sess-2",
	}

	if !record.IsAnonymous() {
		t.Error("UserIDなしのレコードは匿名であるべき")
	}
}

// nullableStringが空文字列をNULLとして扱うことを検証
func TestNullableString(t *testing.T) {
	if v := nullableString(""); v.Valid {
		t.Error("空文字列はNULL（Valid=false）として扱うべき")
	}
	if v := nullableString("user-1"); !v.Valid || v.String != "user-1" {
		t.Errorf("nullableString(%q) = %+v, want Valid=true", "user-1", v)
	}
}
