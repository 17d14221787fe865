// Package repository はapiスキーマのストアドファンクションを呼び出すドメインストアアダプタを提供する。
//
// 各操作は操作ユーザーのIDを受け取り、ドメイン型または *model.Error を返す。
// 認可の不変条件はストアドファンクション側で検証される。
package repository

import (
	"context"

	"github.com/hitoshi/choretracker/internal/model"
)

// TaskRepository はタスク操作のインターフェース。
type TaskRepository interface {
	// FetchAllTasks はユーザーが所属する全タスクグループのタスクを返す。
	FetchAllTasks(ctx context.Context, userID int64) ([]model.Task, error)
	// FetchTask は指定IDのタスクを返す。
	FetchTask(ctx context.Context, userID, taskID int64) (*model.Task, error)
	// CreateTask はタスクを作成する。作成先グループのメンバーである必要がある。
	CreateTask(ctx context.Context, userID int64, cmd model.TaskCommand) (*model.Task, error)
	// UpdateTask はタスクを更新する。グループを変更する場合は移動先のメンバーである必要がある。
	UpdateTask(ctx context.Context, userID, taskID int64, cmd model.TaskCommand) (*model.Task, error)
	// DeleteTask はタスクを削除する。
	DeleteTask(ctx context.Context, userID, taskID int64) error
}

// TaskGroupRepository はタスクグループ操作のインターフェース。
type TaskGroupRepository interface {
	// FetchAllTaskGroups はユーザーが所属するタスクグループを返す。
	FetchAllTaskGroups(ctx context.Context, userID int64) ([]model.TaskGroup, error)
	// CreateTaskGroup はタスクグループを作成し、作成者をメンバーに追加する。
	CreateTaskGroup(ctx context.Context, userID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error)
	// FetchTaskGroup は指定IDのタスクグループを返す。
	FetchTaskGroup(ctx context.Context, userID, taskGroupID int64) (*model.TaskGroup, error)
	// UpdateTaskGroup はタスクグループを更新する。
	UpdateTaskGroup(ctx context.Context, userID, taskGroupID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error)
	// DeleteTaskGroup はタスクグループを削除する。タスクとメンバーシップはCASCADE削除される。
	DeleteTaskGroup(ctx context.Context, userID, taskGroupID int64) error
}

// UserRepository はユーザーとプロフィール操作のインターフェース。
type UserRepository interface {
	// FetchUserProfile はユーザーのプロフィールを返す。
	FetchUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error)
	// CreateOrUpdateUserProfile はプロフィールを作成または更新する。
	CreateOrUpdateUserProfile(ctx context.Context, userID int64, cmd model.UserProfileCommand) (*model.UserProfile, error)
	// ResolveOrCreateGoogleUser はGoogleアカウントIDに紐づくユーザーを返し、未登録の場合は作成する。
	ResolveOrCreateGoogleUser(ctx context.Context, googleUID string) (*model.GoogleSignInResult, error)
}
