package handler

import (
	"github.com/hitoshi/choretracker/internal/repository"
	"github.com/hitoshi/choretracker/internal/schema"
)

// TaskGroupHandler はタスクグループのHTTPハンドラー。
type TaskGroupHandler struct {
	repo repository.TaskGroupRepository
}

// NewTaskGroupHandler はTaskGroupHandlerを生成する。
func NewTaskGroupHandler(repo repository.TaskGroupRepository) *TaskGroupHandler {
	return &TaskGroupHandler{repo: repo}
}

// List はユーザーが所属する全タスクグループを返す。
// GET /task-groups
func (h *TaskGroupHandler) List(req *Request) (Result, error) {
	groups, err := h.repo.FetchAllTaskGroups(req.Context(), req.UserID)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpTaskGroups(groups)), nil
}

// Create はタスクグループを作成する。作成者はメンバーになる。
// POST /task-groups
func (h *TaskGroupHandler) Create(req *Request) (Result, error) {
	cmd, err := schema.LoadTaskGroup(req.Body)
	if err != nil {
		return Result{}, err
	}
	group, err := h.repo.CreateTaskGroup(req.Context(), req.UserID, cmd)
	if err != nil {
		return Result{}, err
	}
	return Created(schema.DumpTaskGroup(*group)), nil
}

// Get は指定IDのタスクグループを返す。
// GET /task-groups/{id}
func (h *TaskGroupHandler) Get(req *Request) (Result, error) {
	id, err := req.ID()
	if err != nil {
		return Result{}, err
	}
	group, err := h.repo.FetchTaskGroup(req.Context(), req.UserID, id)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpTaskGroup(*group)), nil
}

// Update はタスクグループを更新する。
// PUT /task-groups/{id}
func (h *TaskGroupHandler) Update(req *Request) (Result, error) {
	id, err := req.ID()
	if err != nil {
		return Result{}, err
	}
	cmd, err := schema.LoadTaskGroup(req.Body)
	if err != nil {
		return Result{}, err
	}
	group, err := h.repo.UpdateTaskGroup(req.Context(), req.UserID, id, cmd)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpTaskGroup(*group)), nil
}

// Delete はタスクグループを削除する。
// DELETE /task-groups/{id}
func (h *TaskGroupHandler) Delete(req *Request) (Result, error) {
	id, err := req.ID()
	if err != nil {
		return Result{}, err
	}
	if err := h.repo.DeleteTaskGroup(req.Context(), req.UserID, id); err != nil {
		return Result{}, err
	}
	return OK(struct{}{}), nil
}
