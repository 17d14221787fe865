package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/choretracker/internal/middleware"
	"github.com/hitoshi/choretracker/internal/model"
	"github.com/hitoshi/choretracker/internal/schema"
)

type recordedKinds []string

func (r *recordedKinds) RecordDomainError(kind string) {
	*r = append(*r, kind)
}

// serveRoute はルートを単独でchiに載せてリクエストを処理する。
func serveRoute(t *testing.T, p *Pipeline, route Route, userID int64, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(route.Method, route.Pattern, p.Handler(route))
	if userID > 0 {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPipeline_RequiresAuth(t *testing.T) {
	kinds := recordedKinds{}
	called := false
	route := Route{Method: http.MethodGet, Pattern: "/tasks", RequiresAuth: true, Handle: func(*Request) (Result, error) {
		called = true
		return OK(nil), nil
	}}

	w := serveRoute(t, NewPipeline(&kinds), route, 0, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	assertBody(t, w, http.StatusForbidden, `{"status":403,"error":{"message":"forbidden"}}`)
	if called {
		t.Error("handler must not be called without a principal")
	}
	if len(kinds) != 1 || kinds[0] != string(model.KindUnauthenticated) {
		t.Errorf("recorded kinds = %v", kinds)
	}
}

func TestPipeline_AnonymousAllowed(t *testing.T) {
	route := Route{Method: http.MethodPost, Pattern: "/user/sign-out", Handle: func(req *Request) (Result, error) {
		if req.UserID != 0 {
			t.Errorf("UserID = %d, want 0", req.UserID)
		}
		return OK(struct{}{}), nil
	}}

	w := serveRoute(t, NewPipeline(nil), route, 0, httptest.NewRequest(http.MethodPost, "/user/sign-out", nil))
	assertBody(t, w, http.StatusOK, `{"status":200,"data":{}}`)
}

func TestPipeline_PassesUserIDAndBody(t *testing.T) {
	route := Route{Method: http.MethodPost, Pattern: "/tasks", RequiresAuth: true, ExpectsBody: true, Handle: func(req *Request) (Result, error) {
		if req.UserID != 7 {
			t.Errorf("UserID = %d, want 7", req.UserID)
		}
		if string(req.Body) != `{"a":1}` {
			t.Errorf("Body = %s", req.Body)
		}
		return Created(map[string]int{"a": 1}), nil
	}}

	w := serveRoute(t, NewPipeline(nil), route, 7, jsonRequest(http.MethodPost, "/tasks", `{"a":1}`))
	assertBody(t, w, http.StatusCreated, `{"status":201,"data":{"a":1}}`)
}

func TestPipeline_ContentType(t *testing.T) {
	route := Route{Method: http.MethodPost, Pattern: "/tasks", ExpectsBody: true, Handle: func(*Request) (Result, error) {
		return OK(struct{}{}), nil
	}}

	tests := []struct {
		name        string
		contentType string
		wantStatus  int
	}{
		{"json", "application/json", http.StatusOK},
		{"json with charset", "application/json; charset=utf-8", http.StatusOK},
		{"missing", "", http.StatusBadRequest},
		{"form", "application/x-www-form-urlencoded", http.StatusBadRequest},
		{"text", "text/plain", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := serveRoute(t, NewPipeline(nil), route, 0, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadRequest {
				assertBody(t, w, http.StatusBadRequest, `{"status":400,"error":{"message":"request body must be application/json"}}`)
			}
		})
	}
}

func TestPipeline_BodyTooLarge(t *testing.T) {
	called := false
	route := Route{Method: http.MethodPost, Pattern: "/tasks", ExpectsBody: true, Handle: func(*Request) (Result, error) {
		called = true
		return OK(nil), nil
	}}

	body := `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	w := serveRoute(t, NewPipeline(nil), route, 0, jsonRequest(http.MethodPost, "/tasks", body))

	assertBody(t, w, http.StatusBadRequest, `{"status":400,"error":{"message":"request body is too large"}}`)
	if called {
		t.Error("handler must not be called for an oversized body")
	}
}

func TestPipeline_ValidationError(t *testing.T) {
	kinds := recordedKinds{}
	route := Route{Method: http.MethodPost, Pattern: "/tasks", ExpectsBody: true, Handle: func(req *Request) (Result, error) {
		_, err := schema.LoadTask(req.Body)
		return Result{}, err
	}}

	w := serveRoute(t, NewPipeline(&kinds), route, 0, jsonRequest(http.MethodPost, "/tasks", `{not json`))

	assertBody(t, w, http.StatusBadRequest, `{"status":400,"error":{"message":"validation failed","fields":{"_schema":["invalid JSON"]}}}`)
	if len(kinds) != 1 || kinds[0] != string(model.KindBadRequest) {
		t.Errorf("recorded kinds = %v", kinds)
	}
}

func TestPipeline_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			"not found",
			model.NewNoSuchTaskError(5, nil),
			http.StatusNotFound,
			`{"status":404,"error":{"message":"task with ID 5 does not exist"}}`,
		},
		{
			"forbidden",
			model.NewNotTaskGroupMemberError("task", 5, nil),
			http.StatusForbidden,
			`{"status":403,"error":{"message":"not allowed to access task with ID 5"}}`,
		},
		{
			"bad destination",
			model.NewNotRequestedTaskGroupMemberError(9, nil),
			http.StatusBadRequest,
			`{"status":400,"error":{"message":"not allowed to access task group 9"}}`,
		},
		{
			"wrapped domain error",
			errors.Join(errors.New("context"), model.NewNoProfileError(3, nil)),
			http.StatusNotFound,
			`{"status":404,"error":{"message":"no profile for user ID 3"}}`,
		},
		{
			"internal domain error",
			model.NewNoSuchUserError(3, errors.New("secret detail")),
			http.StatusInternalServerError,
			`{"status":500,"error":{"message":"internal server error"}}`,
		},
		{
			"plain error",
			errors.New("pq: connection refused to 10.0.0.1"),
			http.StatusInternalServerError,
			`{"status":500,"error":{"message":"internal server error"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := Route{Method: http.MethodGet, Pattern: "/x", Handle: func(*Request) (Result, error) {
				return Result{}, tt.err
			}}
			w := serveRoute(t, NewPipeline(nil), route, 0, httptest.NewRequest(http.MethodGet, "/x", nil))
			assertBody(t, w, tt.wantCode, tt.wantBody)
		})
	}
}

func TestPipeline_IllegalSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusAccepted, http.StatusNoContent, http.StatusNotFound, 0} {
		route := Route{Method: http.MethodGet, Pattern: "/x", Handle: func(*Request) (Result, error) {
			return Result{Status: status, Data: "x"}, nil
		}}
		w := serveRoute(t, NewPipeline(nil), route, 0, httptest.NewRequest(http.MethodGet, "/x", nil))
		assertBody(t, w, http.StatusInternalServerError, `{"status":500,"error":{"message":"internal server error"}}`)
	}
}

func TestPipeline_HandlerPanic(t *testing.T) {
	calls := 0
	route := Route{Method: http.MethodGet, Pattern: "/x", Handle: func(*Request) (Result, error) {
		calls++
		panic("boom")
	}}

	w := serveRoute(t, NewPipeline(nil), route, 0, httptest.NewRequest(http.MethodGet, "/x", nil))

	assertBody(t, w, http.StatusInternalServerError, `{"status":500,"error":{"message":"internal server error"}}`)
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestRequest_ID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"1", 1, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"9223372036854775808", 0, false},
		{"9999999999999999999", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var got int64
			var gotErr error
			route := Route{Method: http.MethodGet, Pattern: "/tasks/" + idPattern, Handle: func(req *Request) (Result, error) {
				got, gotErr = req.ID()
				if gotErr != nil {
					return Result{}, gotErr
				}
				return OK(struct{}{}), nil
			}}
			w := serveRoute(t, NewPipeline(nil), route, 0, httptest.NewRequest(http.MethodGet, "/tasks/"+tt.raw, nil))

			if tt.wantOK {
				if gotErr != nil || got != tt.want {
					t.Errorf("ID() = (%d, %v), want %d", got, gotErr, tt.want)
				}
				return
			}
			assertBody(t, w, http.StatusNotFound, `{"status":404,"error":{"message":"not found"}}`)
		})
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[model.ErrorKind]int{
		model.KindNotFound:        http.StatusNotFound,
		model.KindForbidden:       http.StatusForbidden,
		model.KindUnauthenticated: http.StatusForbidden,
		model.KindBadRequest:      http.StatusBadRequest,
		model.KindInternal:        http.StatusInternalServerError,
		model.ErrorKind("other"):  http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}
