// Package model はドメインモデルとドメインエラーを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はドメインエラーの分類を表す。
// パイプラインはこの分類だけを見てHTTPステータスを決定する。
type ErrorKind string

const (
	// KindNotFound は指定IDのリソースが存在しないことを示す。
	KindNotFound ErrorKind = "not_found"
	// KindForbidden はリソースは存在するが、メンバーシップがないことを示す。
	KindForbidden ErrorKind = "forbidden"
	// KindBadRequest は入力値や移動先タスクグループ指定が不正であることを示す。
	KindBadRequest ErrorKind = "bad_request"
	// KindUnauthenticated は認証が必要なルートで認証情報が解決できなかったことを示す。
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindInternal は想定外の失敗を示す。詳細はクライアントに返さない。
	KindInternal ErrorKind = "internal"
)

// Error はストア境界で返されるタグ付きドメインエラー。
type Error struct {
	Kind    ErrorKind
	Message string // クライアントに返してよいメッセージ
	Err     error  // ログ用の原因。クライアントには返さない
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はエラーチェーンからドメインエラー分類を取り出す。
// ドメインエラーを含まない場合はKindInternalを返す。
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

// NewNoSuchTaskError はタスク未検出エラーを生成する。
func NewNoSuchTaskError(taskID int64, cause error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("task with ID %d does not exist", taskID),
		Err:     cause,
	}
}

// NewNoSuchTaskGroupError はタスクグループ未検出エラーを生成する。
func NewNoSuchTaskGroupError(taskGroupID int64, cause error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("task group with ID %d does not exist", taskGroupID),
		Err:     cause,
	}
}

// NewNotTaskGroupMemberError は現在のタスクグループのメンバーでない場合のエラーを生成する。
// resourceには "task" または "task group" を渡す。
func NewNotTaskGroupMemberError(resource string, id int64, cause error) *Error {
	return &Error{
		Kind:    KindForbidden,
		Message: fmt.Sprintf("not allowed to access %s with ID %d", resource, id),
		Err:     cause,
	}
}

// NewNotRequestedTaskGroupMemberError は移動先・作成先タスクグループのメンバーでない場合のエラーを生成する。
// 現在のグループへのアクセス違反（403）とは区別し、パラメータ不正として扱う。
func NewNotRequestedTaskGroupMemberError(taskGroupID int64, cause error) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Message: fmt.Sprintf("not allowed to access task group %d", taskGroupID),
		Err:     cause,
	}
}

// NewNoProfileError はユーザープロフィール未作成エラーを生成する。
func NewNoProfileError(userID int64, cause error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("no profile for user ID %d", userID),
		Err:     cause,
	}
}

// NewNoSuchUserError は認証済みユーザーがストアに存在しない場合のエラーを生成する。
// 本来起こり得ないため内部エラーとして扱う。
func NewNoSuchUserError(userID int64, cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: fmt.Sprintf("unknown user ID %d", userID),
		Err:     cause,
	}
}

// NewInvalidIDTokenError はGoogle IDトークンの検証失敗エラーを生成する。
func NewInvalidIDTokenError(cause error) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Message: "invalid ID token",
		Err:     cause,
	}
}

// NewUnauthenticatedError は認証必須ルートへの未認証アクセスエラーを生成する。
func NewUnauthenticatedError() *Error {
	return &Error{
		Kind:    KindUnauthenticated,
		Message: "forbidden",
	}
}
