package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/choretracker/internal/model"
)

const taskColumns = `id, task_group_id, name, description, due_unix, created_unix, modified_unix`

// PostgresTaskRepo はapiスキーマのタスク関数を呼び出すリポジトリ。
type PostgresTaskRepo struct {
	store
}

var _ TaskRepository = (*PostgresTaskRepo)(nil)

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
// timeoutは1回の呼び出しに許容する時間で、0以下の場合は制限しない。
func NewPostgresTaskRepo(db *sqlx.DB, timeout time.Duration) *PostgresTaskRepo {
	return &PostgresTaskRepo{store: newStore(db, timeout)}
}

// FetchAllTasks はユーザーが所属する全タスクグループのタスクを返す。
func (r *PostgresTaskRepo) FetchAllTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	var tasks []model.Task
	err := r.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM api.asuser_fetch_all_tasks($1)`,
		userID,
	)
	if err != nil {
		return nil, translate("fetch all tasks", err, target{userID: userID})
	}
	return tasks, nil
}

// FetchTask は指定IDのタスクを返す。
func (r *PostgresTaskRepo) FetchTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	task := &model.Task{}
	err := r.db.GetContext(ctx, task,
		`SELECT `+taskColumns+` FROM api.asuser_fetch_task($1, $2)`,
		userID, taskID,
	)
	if err != nil {
		return nil, translate("fetch task", err, target{userID: userID, taskID: taskID})
	}
	return task, nil
}

// CreateTask はタスクを作成する。
func (r *PostgresTaskRepo) CreateTask(ctx context.Context, userID int64, cmd model.TaskCommand) (*model.Task, error) {
	task := &model.Task{}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, task,
			`SELECT `+taskColumns+` FROM api.asuser_create_task($1, $2, $3, $4, $5)`,
			userID, cmd.TaskGroupID, cmd.Name, cmd.Description, cmd.DueUnix,
		)
	})
	if err != nil {
		return nil, translate("create task", err, target{
			userID:               userID,
			taskGroupID:          cmd.TaskGroupID,
			requestedTaskGroupID: cmd.TaskGroupID,
		})
	}
	return task, nil
}

// UpdateTask はタスクを更新する。
func (r *PostgresTaskRepo) UpdateTask(ctx context.Context, userID, taskID int64, cmd model.TaskCommand) (*model.Task, error) {
	task := &model.Task{}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, task,
			`SELECT `+taskColumns+` FROM api.asuser_update_task($1, $2, $3, $4, $5, $6)`,
			userID, taskID, cmd.TaskGroupID, cmd.Name, cmd.Description, cmd.DueUnix,
		)
	})
	if err != nil {
		return nil, translate("update task", err, target{
			userID:               userID,
			taskID:               taskID,
			requestedTaskGroupID: cmd.TaskGroupID,
		})
	}
	return task, nil
}

// DeleteTask はタスクを削除する。
func (r *PostgresTaskRepo) DeleteTask(ctx context.Context, userID, taskID int64) error {
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `SELECT api.asuser_delete_task($1, $2)`, userID, taskID)
		return err
	})
	if err != nil {
		return translate("delete task", err, target{userID: userID, taskID: taskID})
	}
	return nil
}
