package schema

import (
	"math"

	"github.com/hitoshi/choretracker/internal/model"
)

// Task はタスクのワイヤ表現。
type Task struct {
	ID          int64  `json:"id"`
	TaskGroup   int64  `json:"taskGroup"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Due         int64  `json:"due"`
	Created     int64  `json:"created"`
	Modified    int64  `json:"modified"`
}

// LoadTask はリクエストボディをタスク作成・更新コマンドに変換する。
// id、created、modifiedが含まれている場合は拒否する。
func LoadTask(body []byte) (model.TaskCommand, error) {
	l, err := newLoader(body)
	if err != nil {
		return model.TaskCommand{}, err
	}

	l.readOnly("id", "created", "modified")
	cmd := model.TaskCommand{
		TaskGroupID: l.integer("taskGroup", 1, math.MaxInt64),
		Name:        l.nonEmptyStr("name"),
		DueUnix:     l.integer("due", 0, MaxUnix),
	}
	cmd.Description, _ = l.str("description")

	if err := l.err(); err != nil {
		return model.TaskCommand{}, err
	}
	return cmd, nil
}

// DumpTask はタスクをワイヤ表現に変換する。
func DumpTask(t model.Task) Task {
	return Task{
		ID:          t.ID,
		TaskGroup:   t.TaskGroupID,
		Name:        t.Name,
		Description: t.Description,
		Due:         t.DueUnix,
		Created:     t.CreatedUnix,
		Modified:    t.ModifiedUnix,
	}
}

// DumpTasks はタスク一覧をワイヤ表現に変換する。空の場合も空配列を返す。
func DumpTasks(tasks []model.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, DumpTask(t))
	}
	return out
}
