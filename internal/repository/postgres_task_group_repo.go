package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/choretracker/internal/model"
)

const taskGroupColumns = `id, name, description, created_unix, modified_unix`

// PostgresTaskGroupRepo はapiスキーマのタスクグループ関数を呼び出すリポジトリ。
type PostgresTaskGroupRepo struct {
	store
}

var _ TaskGroupRepository = (*PostgresTaskGroupRepo)(nil)

// NewPostgresTaskGroupRepo はPostgresTaskGroupRepoを生成する。
func NewPostgresTaskGroupRepo(db *sqlx.DB, timeout time.Duration) *PostgresTaskGroupRepo {
	return &PostgresTaskGroupRepo{store: newStore(db, timeout)}
}

// FetchAllTaskGroups はユーザーが所属するタスクグループを返す。
func (r *PostgresTaskGroupRepo) FetchAllTaskGroups(ctx context.Context, userID int64) ([]model.TaskGroup, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	var groups []model.TaskGroup
	err := r.db.SelectContext(ctx, &groups,
		`SELECT `+taskGroupColumns+` FROM api.asuser_fetch_all_task_groups($1)`,
		userID,
	)
	if err != nil {
		return nil, translate("fetch all task groups", err, target{userID: userID})
	}
	return groups, nil
}

// CreateTaskGroup はタスクグループを作成し、作成者をメンバーに追加する。
func (r *PostgresTaskGroupRepo) CreateTaskGroup(ctx context.Context, userID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error) {
	group := &model.TaskGroup{}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, group,
			`SELECT `+taskGroupColumns+` FROM api.asuser_create_task_group($1, $2, $3)`,
			userID, cmd.Name, cmd.Description,
		)
	})
	if err != nil {
		return nil, translate("create task group", err, target{userID: userID})
	}
	return group, nil
}

// FetchTaskGroup は指定IDのタスクグループを返す。
func (r *PostgresTaskGroupRepo) FetchTaskGroup(ctx context.Context, userID, taskGroupID int64) (*model.TaskGroup, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	group := &model.TaskGroup{}
	err := r.db.GetContext(ctx, group,
		`SELECT `+taskGroupColumns+` FROM api.asuser_fetch_task_group($1, $2)`,
		userID, taskGroupID,
	)
	if err != nil {
		return nil, translate("fetch task group", err, target{userID: userID, taskGroupID: taskGroupID})
	}
	return group, nil
}

// UpdateTaskGroup はタスクグループを更新する。
func (r *PostgresTaskGroupRepo) UpdateTaskGroup(ctx context.Context, userID, taskGroupID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error) {
	group := &model.TaskGroup{}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, group,
			`SELECT `+taskGroupColumns+` FROM api.asuser_update_task_group($1, $2, $3, $4)`,
			userID, taskGroupID, cmd.Name, cmd.Description,
		)
	})
	if err != nil {
		return nil, translate("update task group", err, target{userID: userID, taskGroupID: taskGroupID})
	}
	return group, nil
}

// DeleteTaskGroup はタスクグループを削除する。
func (r *PostgresTaskGroupRepo) DeleteTaskGroup(ctx context.Context, userID, taskGroupID int64) error {
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `SELECT api.asuser_delete_task_group($1, $2)`, userID, taskGroupID)
		return err
	})
	if err != nil {
		return translate("delete task group", err, target{userID: userID, taskGroupID: taskGroupID})
	}
	return nil
}
