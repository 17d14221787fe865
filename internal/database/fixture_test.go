package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestInstallFixture_CreatesUserGroupAndTasks(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	day := int64(24 * 60 * 60)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT api.create_user()`)).
		WillReturnRows(sqlmock.NewRows([]string{"create_user"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM api.asuser_create_task_group($1, $2, $3)`)).
		WithArgs(int64(3), "User 3's task group", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM api.asuser_create_task($1, $2, $3, $4, $5)`)).
		WithArgs(int64(3), int64(11), "Clean Kitchen", "- Wash dishes\n- Wipe down surfaces\n- Sweep and mop", now.Unix()-4*day).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM api.asuser_create_task($1, $2, $3, $4, $5)`)).
		WithArgs(int64(3), int64(11), "Change Car Oil", "", now.Unix()+30*day).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(22)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM api.asuser_create_task($1, $2, $3, $4, $5)`)).
		WithArgs(int64(3), int64(11), "Clean bathroom", "Make sure to get under the toilet", now.Unix()+2*day).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(23)))
	mock.ExpectCommit()

	result, err := InstallFixture(context.Background(), db, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.UserID != 3 {
		t.Errorf("UserID = %d, want %d", result.UserID, 3)
	}
	if result.TaskGroupID != 11 {
		t.Errorf("TaskGroupID = %d, want %d", result.TaskGroupID, 11)
	}
	if len(result.TaskIDs) != 3 {
		t.Errorf("len(TaskIDs) = %d, want 3", len(result.TaskIDs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 途中で失敗した場合はロールバックされること
func TestInstallFixture_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT api.create_user()`)).
		WillReturnRows(sqlmock.NewRows([]string{"create_user"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM api.asuser_create_task_group($1, $2, $3)`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := InstallFixture(context.Background(), db, time.Now())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
