// Package envelope は全APIレスポンスが従うJSONエンベロープの生成を提供する。
//
// 成功時: {"status": 200|201, "data": <payload>}
// 失敗時: {"status": 4xx|500, "error": {"message": "...", "fields": {...}}}
//
// ボディのstatusは常にHTTPステータスコードと一致する。
package envelope

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// InternalErrorMessage は500応答でクライアントに返す唯一のメッセージ。
const InternalErrorMessage = "internal server error"

// successCodes は成功エンベロープで許可されるステータスコード。
var successCodes = map[int]bool{
	http.StatusOK:      true,
	http.StatusCreated: true,
}

// failureCodes は失敗エンベロープで許可されるステータスコード。
var failureCodes = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusMethodNotAllowed:    true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
}

// ErrorBody は失敗エンベロープのerrorフィールド。
type ErrorBody struct {
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type successEnvelope struct {
	Status int `json:"status"`
	Data   any `json:"data"`
}

type failureEnvelope struct {
	Status int       `json:"status"`
	Error  ErrorBody `json:"error"`
}

// IsSuccessStatus はstatusが成功エンベロープで使えるかを返す。
func IsSuccessStatus(status int) bool {
	return successCodes[status]
}

// EncodeSuccess は成功エンベロープをJSONにエンコードする。
// statusが200/201以外の場合はプログラミングエラーとしてエラーを返す。
func EncodeSuccess(status int, data any) ([]byte, error) {
	if !successCodes[status] {
		return nil, fmt.Errorf("unexpected success status code %d", status)
	}
	b, err := json.Marshal(successEnvelope{Status: status, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode success envelope: %w", err)
	}
	return b, nil
}

// EncodeFailure は失敗エンベロープをJSONにエンコードする。
func EncodeFailure(status int, body ErrorBody) ([]byte, error) {
	if !failureCodes[status] {
		return nil, fmt.Errorf("unexpected failure status code %d", status)
	}
	b, err := json.Marshal(failureEnvelope{Status: status, Error: body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode failure envelope: %w", err)
	}
	return b, nil
}

// WriteSuccess は成功エンベロープを書き込む。
// エンコードに失敗した場合は何も書かずに500エンベロープへフォールバックする。
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	b, err := EncodeSuccess(status, data)
	if err != nil {
		slog.Error("failed to render success response",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return
	}
	write(w, status, b)
}

// WriteError はメッセージのみの失敗エンベロープを書き込む。
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteErrorBody(w, status, ErrorBody{Message: message})
}

// WriteErrorBody は失敗エンベロープを書き込む。
func WriteErrorBody(w http.ResponseWriter, status int, body ErrorBody) {
	b, err := EncodeFailure(status, body)
	if err != nil {
		slog.Error("failed to render failure response",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return
	}
	write(w, status, b)
}

// WriteInternalServerError は内部エラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	b, _ := json.Marshal(failureEnvelope{
		Status: http.StatusInternalServerError,
		Error:  ErrorBody{Message: InternalErrorMessage},
	})
	write(w, http.StatusInternalServerError, b)
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
