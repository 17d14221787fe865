package handler

import (
	"github.com/hitoshi/choretracker/internal/repository"
	"github.com/hitoshi/choretracker/internal/schema"
)

// TaskHandler はタスクのHTTPハンドラー。
type TaskHandler struct {
	repo repository.TaskRepository
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(repo repository.TaskRepository) *TaskHandler {
	return &TaskHandler{repo: repo}
}

// List はユーザーが参照可能な全タスクを返す。
// GET /tasks
func (h *TaskHandler) List(req *Request) (Result, error) {
	tasks, err := h.repo.FetchAllTasks(req.Context(), req.UserID)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpTasks(tasks)), nil
}

// Create はタスクを作成する。
// POST /tasks
func (h *TaskHandler) Create(req *Request) (Result, error) {
	cmd, err := schema.LoadTask(req.Body)
	if err != nil {
		return Result{}, err
	}
	task, err := h.repo.CreateTask(req.Context(), req.UserID, cmd)
	if err != nil {
		return Result{}, err
	}
	return Created(schema.DumpTask(*task)), nil
}

// Get は指定IDのタスクを返す。
// GET /tasks/{id}
func (h *TaskHandler) Get(req *Request) (Result, error) {
	id, err := req.ID()
	if err != nil {
		return Result{}, err
	}
	task, err := h.repo.FetchTask(req.Context(), req.UserID, id)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpTask(*task)), nil
}

// Update はタスクを更新する。
// PUT /tasks/{id}
func (h *TaskHandler) Update(req *Request) (Result, error) {
	id, err := req.ID()
	if err != nil {
		return Result{}, err
	}
	cmd, err := schema.LoadTask(req.Body)
	if err != nil {
		return Result{}, err
	}
	task, err := h.repo.UpdateTask(req.Context(), req.UserID, id, cmd)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpTask(*task)), nil
}

// Delete はタスクを削除する。
// DELETE /tasks/{id}
func (h *TaskHandler) Delete(req *Request) (Result, error) {
	id, err := req.ID()
	if err != nil {
		return Result{}, err
	}
	if err := h.repo.DeleteTask(req.Context(), req.UserID, id); err != nil {
		return Result{}, err
	}
	return OK(struct{}{}), nil
}
