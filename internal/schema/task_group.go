package schema

import "github.com/hitoshi/choretracker/internal/model"

// TaskGroup はタスクグループのワイヤ表現。
type TaskGroup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Created     int64  `json:"created"`
	Modified    int64  `json:"modified"`
}

// LoadTaskGroup はリクエストボディをタスクグループ作成・更新コマンドに変換する。
func LoadTaskGroup(body []byte) (model.TaskGroupCommand, error) {
	l, err := newLoader(body)
	if err != nil {
		return model.TaskGroupCommand{}, err
	}

	l.readOnly("id", "created", "modified")
	cmd := model.TaskGroupCommand{
		Name: l.nonEmptyStr("name"),
	}
	cmd.Description, _ = l.str("description")

	if err := l.err(); err != nil {
		return model.TaskGroupCommand{}, err
	}
	return cmd, nil
}

// DumpTaskGroup はタスクグループをワイヤ表現に変換する。
func DumpTaskGroup(g model.TaskGroup) TaskGroup {
	return TaskGroup{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Created:     g.CreatedUnix,
		Modified:    g.ModifiedUnix,
	}
}

// DumpTaskGroups はタスクグループ一覧をワイヤ表現に変換する。
func DumpTaskGroups(groups []model.TaskGroup) []TaskGroup {
	out := make([]TaskGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, DumpTaskGroup(g))
	}
	return out
}
