package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/choretracker/internal/model"
)

// raiseException はPL/pgSQLのRAISE EXCEPTIONでERRCODE未指定時のSQLSTATE。
const raiseException pq.ErrorCode = "P0001"

// ストアドファンクションがDETAILで通知する条件名。
const (
	conditionNoSuchTask                        = "NO_SUCH_TASK"
	conditionNoSuchTaskGroup                   = "NO_SUCH_TASK_GROUP"
	conditionUserNotMemberOfTaskGroup          = "USER_NOT_MEMBER_OF_TASK_GROUP"
	conditionUserNotMemberOfRequestedTaskGroup = "USER_NOT_MEMBER_OF_REQUESTED_TASK_GROUP"
	conditionNoSuchUser                        = "NO_SUCH_USER"
	conditionNoProfileForUser                  = "NO_PROFILE_FOR_USER"
)

// store はリポジトリ共通のDBハンドルと呼び出しタイムアウトを保持する。
type store struct {
	db      *sqlx.DB
	timeout time.Duration
}

func newStore(db *sqlx.DB, timeout time.Duration) store {
	return store{db: db, timeout: timeout}
}

// callContext は呼び出しごとのタイムアウトを設定したコンテキストを返す。
func (s store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// inTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、そのエラーをそのまま返す。
func (s store) inTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// target は条件をドメインエラーに変換する際にメッセージへ含める対象IDを保持する。
type target struct {
	userID               int64
	taskID               int64
	taskGroupID          int64
	requestedTaskGroupID int64
}

// translate はストアドファンクションが通知した条件をドメインエラーに変換する。
// 未知の条件やその他のエラーはopを付与してそのまま返し、パイプラインで内部エラーとして扱われる。
func translate(op string, err error, t target) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != raiseException {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	switch pqErr.Detail {
	case conditionNoSuchTask:
		return model.NewNoSuchTaskError(t.taskID, err)
	case conditionNoSuchTaskGroup:
		return model.NewNoSuchTaskGroupError(t.taskGroupID, err)
	case conditionUserNotMemberOfTaskGroup:
		if t.taskID != 0 {
			return model.NewNotTaskGroupMemberError("task", t.taskID, err)
		}
		return model.NewNotTaskGroupMemberError("task group", t.taskGroupID, err)
	case conditionUserNotMemberOfRequestedTaskGroup:
		return model.NewNotRequestedTaskGroupMemberError(t.requestedTaskGroupID, err)
	case conditionNoProfileForUser:
		return model.NewNoProfileError(t.userID, err)
	case conditionNoSuchUser:
		return model.NewNoSuchUserError(t.userID, err)
	}

	return fmt.Errorf("failed to %s: unknown condition %q: %w", op, pqErr.Detail, err)
}
