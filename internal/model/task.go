package model

// Task はタスクグループに属するタスクを表す。
// 時刻はすべてUNIX秒で保持する。
type Task struct {
	ID           int64  `db:"id"`
	TaskGroupID  int64  `db:"task_group_id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	DueUnix      int64  `db:"due_unix"`
	CreatedUnix  int64  `db:"created_unix"`
	ModifiedUnix int64  `db:"modified_unix"`
}

// TaskCommand はクライアント入力から検証済みのタスク作成・更新コマンド。
// id、created、modifiedはクライアントから受け付けないため含まない。
type TaskCommand struct {
	TaskGroupID int64
	Name        string
	Description string
	DueUnix     int64
}

// TaskGroup はタスクをまとめるグループを表す。
// ユーザーとはメンバーシップで多対多に関連付けられる。
type TaskGroup struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	CreatedUnix  int64  `db:"created_unix"`
	ModifiedUnix int64  `db:"modified_unix"`
}

// TaskGroupCommand は検証済みのタスクグループ作成・更新コマンド。
type TaskGroupCommand struct {
	Name        string
	Description string
}
