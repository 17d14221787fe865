package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// fixtureTask は開発用フィクスチャで作成するサンプルタスク。
type fixtureTask struct {
	name        string
	description string
	dueOffset   time.Duration
}

var fixtureTasks = []fixtureTask{
	{
		name:        "Clean Kitchen",
		description: "- Wash dishes\n- Wipe down surfaces\n- Sweep and mop",
		dueOffset:   -4 * 24 * time.Hour,
	},
	{
		name:        "Change Car Oil",
		description: "",
		dueOffset:   30 * 24 * time.Hour,
	},
	{
		name:        "Clean bathroom",
		description: "Make sure to get under the toilet",
		dueOffset:   2 * 24 * time.Hour,
	},
}

// FixtureResult はフィクスチャ投入で作成されたIDを表す。
type FixtureResult struct {
	UserID      int64
	TaskGroupID int64
	TaskIDs     []int64
}

// InstallFixture は開発用のユーザー、タスクグループ、サンプルタスクを1トランザクションで作成する。
// 期限はnowからの相対時刻で設定する。
func InstallFixture(ctx context.Context, db *sqlx.DB, now time.Time) (*FixtureResult, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &FixtureResult{}

	if err := tx.GetContext(ctx, &result.UserID, `SELECT api.create_user()`); err != nil {
		return nil, fmt.Errorf("failed to create fixture user: %w", err)
	}

	groupName := fmt.Sprintf("User %d's task group", result.UserID)
	if err := tx.GetContext(ctx, &result.TaskGroupID,
		`SELECT id FROM api.asuser_create_task_group($1, $2, $3)`,
		result.UserID, groupName, "",
	); err != nil {
		return nil, fmt.Errorf("failed to create fixture task group: %w", err)
	}

	for _, ft := range fixtureTasks {
		var taskID int64
		if err := tx.GetContext(ctx, &taskID,
			`SELECT id FROM api.asuser_create_task($1, $2, $3, $4, $5)`,
			result.UserID, result.TaskGroupID, ft.name, ft.description, now.Add(ft.dueOffset).Unix(),
		); err != nil {
			return nil, fmt.Errorf("failed to create fixture task %q: %w", ft.name, err)
		}
		result.TaskIDs = append(result.TaskIDs, taskID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit fixture: %w", err)
	}

	return result, nil
}
