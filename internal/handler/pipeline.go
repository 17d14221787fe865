// Package handler はHTTPルートテーブルとリクエストパイプラインを提供する。
//
// 各リクエストは 受信 → 認証 → ボディ検証 → 実行 → シリアライズ → 送信 の順に処理され、
// 認証・ボディ検証・実行のいずれかで失敗した場合はエラーのエンベロープを返す。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/choretracker/internal/envelope"
	"github.com/hitoshi/choretracker/internal/middleware"
	"github.com/hitoshi/choretracker/internal/model"
	"github.com/hitoshi/choretracker/internal/schema"
)

const (
	// MaxBodyBytes はリクエストボディの最大サイズ（1MiB）。
	MaxBodyBytes = 1 << 20

	// idParam はリソースIDのURLパラメータ名。
	idParam = "id"

	msgNotJSON          = "request body must be application/json"
	msgBodyTooLarge     = "request body is too large"
	msgValidationFailed = "validation failed"
	msgNotFound         = "not found"
	msgMethodNotAllowed = "method not allowed"
)

// Request はハンドラーに渡される検証済みリクエスト。
type Request struct {
	// UserID は認証済みユーザーID。認証不要ルートで匿名の場合は0。
	UserID int64
	// Body はExpectsBodyのルートでのみ設定される生のJSONボディ。
	Body []byte

	http *http.Request
	w    http.ResponseWriter
}

// Context はリクエストのコンテキストを返す。
func (r *Request) Context() context.Context {
	return r.http.Context()
}

// ID はパスのリソースIDを返す。int64に収まらない場合はNotFoundとする。
func (r *Request) ID() (int64, error) {
	raw := chi.URLParam(r.http, idParam)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.Error{Kind: model.KindNotFound, Message: msgNotFound, Err: err}
	}
	return id, nil
}

// ResponseWriter はCookie設定など、エンベロープ以外のヘッダー操作に使う。
// ボディの書き込みはパイプラインが行う。
func (r *Request) ResponseWriter() http.ResponseWriter {
	return r.w
}

// Result はハンドラーの成功結果。Statusは200または201でなければならない。
type Result struct {
	Status int
	Data   any
}

// OK は200の結果を返す。
func OK(data any) Result { return Result{Status: http.StatusOK, Data: data} }

// Created は201の結果を返す。
func Created(data any) Result { return Result{Status: http.StatusCreated, Data: data} }

// HandleFunc はルートの処理本体。
type HandleFunc func(req *Request) (Result, error)

// Route はルートテーブルの1エントリ。
type Route struct {
	Method       string
	Pattern      string
	RequiresAuth bool
	ExpectsBody  bool
	Handle       HandleFunc
	// Middlewares はこのルートにのみ適用するミドルウェア。
	Middlewares []func(http.Handler) http.Handler
}

// DomainErrorRecorder はドメインエラーの発生を記録する。
type DomainErrorRecorder interface {
	RecordDomainError(kind string)
}

// Pipeline はRouteをhttp.Handlerに変換する。
type Pipeline struct {
	recorder DomainErrorRecorder
}

// NewPipeline はPipelineを生成する。recorderはnilでもよい。
func NewPipeline(recorder DomainErrorRecorder) *Pipeline {
	return &Pipeline{recorder: recorder}
}

// Handler はルートを処理するhttp.Handlerを返す。
// 1リクエストにつきハンドラーの呼び出しは高々1回、レスポンスはちょうど1回書き込む。
func (p *Pipeline) Handler(route Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &Request{http: r, w: w}

		// 認証
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			req.UserID = userID
		} else if route.RequiresAuth {
			p.writeError(w, r, model.NewUnauthenticatedError())
			return
		}

		// ボディ検証
		if route.ExpectsBody {
			body, err := readJSONBody(w, r)
			if err != nil {
				p.writeError(w, r, err)
				return
			}
			req.Body = body
		}

		// 実行
		res, err := p.execute(route.Handle, req)
		if err != nil {
			p.writeError(w, r, err)
			return
		}

		// シリアライズ
		if !envelope.IsSuccessStatus(res.Status) {
			slog.Error("handler returned illegal success status",
				slog.Int("status", res.Status),
				slog.String("route", route.Method+" "+route.Pattern),
			)
			envelope.WriteInternalServerError(w)
			return
		}
		envelope.WriteSuccess(w, res.Status, res.Data)
	})
}

// execute はハンドラーを呼び出す。panicはエラーに変換する。
func (p *Pipeline) execute(handle HandleFunc, req *Request) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in handler",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return handle(req)
}

// readJSONBody はContent-Typeを確認し、サイズ上限付きでボディを読み込む。
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, &model.Error{Kind: model.KindBadRequest, Message: msgNotJSON, Err: err}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &model.Error{Kind: model.KindBadRequest, Message: msgBodyTooLarge, Err: err}
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// writeError はエラーを分類してエラーのエンベロープを書き込む。
// Internalの詳細はログにのみ出力する。
func (p *Pipeline) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		p.record(model.KindBadRequest)
		envelope.WriteErrorBody(w, http.StatusBadRequest, envelope.ErrorBody{
			Message: msgValidationFailed,
			Fields:  verr.Fields,
		})
		return
	}

	kind := model.KindOf(err)
	p.record(kind)

	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		envelope.WriteInternalServerError(w)
		return
	}

	var domainErr *model.Error
	errors.As(err, &domainErr)
	envelope.WriteError(w, status, domainErr.Message)
}

func (p *Pipeline) record(kind model.ErrorKind) {
	if p.recorder != nil {
		p.recorder.RecordDomainError(string(kind))
	}
}

// statusForKind はドメインエラー分類をHTTPステータスに変換する。
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindForbidden, model.KindUnauthenticated:
		return http.StatusForbidden
	case model.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
