package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/choretracker/internal/middleware"
	"github.com/hitoshi/choretracker/internal/model"
)

// --- モック定義 ---

type mockTaskRepo struct {
	fetchAllFn func(ctx context.Context, userID int64) ([]model.Task, error)
	fetchFn    func(ctx context.Context, userID, taskID int64) (*model.Task, error)
	createFn   func(ctx context.Context, userID int64, cmd model.TaskCommand) (*model.Task, error)
	updateFn   func(ctx context.Context, userID, taskID int64, cmd model.TaskCommand) (*model.Task, error)
	deleteFn   func(ctx context.Context, userID, taskID int64) error
}

func (m *mockTaskRepo) FetchAllTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	if m.fetchAllFn != nil {
		return m.fetchAllFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTaskRepo) FetchTask(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, userID, taskID)
	}
	return &model.Task{ID: taskID}, nil
}

func (m *mockTaskRepo) CreateTask(ctx context.Context, userID int64, cmd model.TaskCommand) (*model.Task, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, cmd)
	}
	return &model.Task{ID: 1, TaskGroupID: cmd.TaskGroupID, Name: cmd.Name, Description: cmd.Description, DueUnix: cmd.DueUnix}, nil
}

func (m *mockTaskRepo) UpdateTask(ctx context.Context, userID, taskID int64, cmd model.TaskCommand) (*model.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, taskID, cmd)
	}
	return &model.Task{ID: taskID, TaskGroupID: cmd.TaskGroupID, Name: cmd.Name, Description: cmd.Description, DueUnix: cmd.DueUnix}, nil
}

func (m *mockTaskRepo) DeleteTask(ctx context.Context, userID, taskID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, taskID)
	}
	return nil
}

type mockTaskGroupRepo struct {
	fetchAllFn func(ctx context.Context, userID int64) ([]model.TaskGroup, error)
	fetchFn    func(ctx context.Context, userID, taskGroupID int64) (*model.TaskGroup, error)
	createFn   func(ctx context.Context, userID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error)
	updateFn   func(ctx context.Context, userID, taskGroupID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error)
	deleteFn   func(ctx context.Context, userID, taskGroupID int64) error
}

func (m *mockTaskGroupRepo) FetchAllTaskGroups(ctx context.Context, userID int64) ([]model.TaskGroup, error) {
	if m.fetchAllFn != nil {
		return m.fetchAllFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTaskGroupRepo) CreateTaskGroup(ctx context.Context, userID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, cmd)
	}
	return &model.TaskGroup{ID: 1, Name: cmd.Name, Description: cmd.Description}, nil
}

func (m *mockTaskGroupRepo) FetchTaskGroup(ctx context.Context, userID, taskGroupID int64) (*model.TaskGroup, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, userID, taskGroupID)
	}
	return &model.TaskGroup{ID: taskGroupID}, nil
}

func (m *mockTaskGroupRepo) UpdateTaskGroup(ctx context.Context, userID, taskGroupID int64, cmd model.TaskGroupCommand) (*model.TaskGroup, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, taskGroupID, cmd)
	}
	return &model.TaskGroup{ID: taskGroupID, Name: cmd.Name, Description: cmd.Description}, nil
}

func (m *mockTaskGroupRepo) DeleteTaskGroup(ctx context.Context, userID, taskGroupID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, taskGroupID)
	}
	return nil
}

type mockUserRepo struct {
	fetchProfileFn  func(ctx context.Context, userID int64) (*model.UserProfile, error)
	updateProfileFn func(ctx context.Context, userID int64, cmd model.UserProfileCommand) (*model.UserProfile, error)
}

func (m *mockUserRepo) FetchUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, userID)
	}
	return nil, model.NewNoProfileError(userID, nil)
}

func (m *mockUserRepo) CreateOrUpdateUserProfile(ctx context.Context, userID int64, cmd model.UserProfileCommand) (*model.UserProfile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, cmd)
	}
	return &model.UserProfile{UserID: userID, Email: cmd.Email, DisplayName: cmd.DisplayName}, nil
}

func (m *mockUserRepo) ResolveOrCreateGoogleUser(_ context.Context, _ string) (*model.GoogleSignInResult, error) {
	return nil, nil
}

type mockSignIn struct {
	signInFn func(ctx context.Context, idToken string) (*model.GoogleSignInResult, error)
}

func (m *mockSignIn) GoogleSignIn(ctx context.Context, idToken string) (*model.GoogleSignInResult, error) {
	return m.signInFn(ctx, idToken)
}

type mockTickets struct {
	remembered int64
	forgotten  bool
	rememberFn func(w http.ResponseWriter, userID int64) error
}

func (m *mockTickets) Remember(w http.ResponseWriter, userID int64) error {
	m.remembered = userID
	if m.rememberFn != nil {
		return m.rememberFn(w, userID)
	}
	http.SetCookie(w, &http.Cookie{Name: "AUTHTKT", Value: "ticket"})
	return nil
}

func (m *mockTickets) Forget(w http.ResponseWriter) {
	m.forgotten = true
	http.SetCookie(w, &http.Cookie{Name: "AUTHTKT", Value: "", MaxAge: -1})
}

// fixedResolver は固定のユーザーIDを認証主体とする。0の場合は匿名。
type fixedResolver struct {
	userID int64
}

func (f *fixedResolver) Resolve(r *http.Request) (int64, bool) {
	return f.userID, f.userID > 0
}

var _ middleware.PrincipalResolver = (*fixedResolver)(nil)

// --- ヘルパー ---

func newTestDeps(userID int64) *RouterDeps {
	return &RouterDeps{
		APIPrefix:         "/",
		Resolver:          &fixedResolver{userID: userID},
		CORSAllowedOrigin: "http://localhost:3000",
		TaskRepo:          &mockTaskRepo{},
		TaskGroupRepo:     &mockTaskGroupRepo{},
		UserRepo:          &mockUserRepo{},
		SignIn: &mockSignIn{signInFn: func(context.Context, string) (*model.GoogleSignInResult, error) {
			return &model.GoogleSignInResult{UserID: 1}, nil
		}},
		Tickets: &mockTickets{},
	}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func assertBody(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantBody string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != wantBody {
		t.Errorf("body = %s\nwant   %s", got, wantBody)
	}
}
