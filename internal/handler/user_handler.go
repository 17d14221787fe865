package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/choretracker/internal/model"
	"github.com/hitoshi/choretracker/internal/repository"
	"github.com/hitoshi/choretracker/internal/schema"
)

// SignInService はGoogleサインインを実行するサービスインターフェース。
type SignInService interface {
	GoogleSignIn(ctx context.Context, idToken string) (*model.GoogleSignInResult, error)
}

// TicketIssuer はレスポンスに認証状態を記録・破棄する。
// auth.Policyの部分集合として定義する。
type TicketIssuer interface {
	Remember(w http.ResponseWriter, userID int64) error
	Forget(w http.ResponseWriter)
}

// UserHandler はユーザープロフィールとサインインのHTTPハンドラー。
type UserHandler struct {
	repo    repository.UserRepository
	signIn  SignInService
	tickets TicketIssuer
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(repo repository.UserRepository, signIn SignInService, tickets TicketIssuer) *UserHandler {
	return &UserHandler{repo: repo, signIn: signIn, tickets: tickets}
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /user/profile
func (h *UserHandler) GetProfile(req *Request) (Result, error) {
	profile, err := h.repo.FetchUserProfile(req.Context(), req.UserID)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpUserProfile(*profile)), nil
}

// PutProfile はログインユーザーのプロフィールを作成または更新する。
// PUT /user/profile
func (h *UserHandler) PutProfile(req *Request) (Result, error) {
	cmd, err := schema.LoadUserProfile(req.Body)
	if err != nil {
		return Result{}, err
	}
	profile, err := h.repo.CreateOrUpdateUserProfile(req.Context(), req.UserID, cmd)
	if err != nil {
		return Result{}, err
	}
	return OK(schema.DumpUserProfile(*profile)), nil
}

// GoogleSignIn はGoogle IDトークンでサインインし、チケットCookieを発行する。
// POST /user/google-sign-in
func (h *UserHandler) GoogleSignIn(req *Request) (Result, error) {
	idToken, err := schema.LoadGoogleSignIn(req.Body)
	if err != nil {
		return Result{}, err
	}
	result, err := h.signIn.GoogleSignIn(req.Context(), idToken)
	if err != nil {
		return Result{}, err
	}
	if err := h.tickets.Remember(req.ResponseWriter(), result.UserID); err != nil {
		return Result{}, fmt.Errorf("failed to issue ticket: %w", err)
	}
	return OK(schema.DumpGoogleSignInResult(*result)), nil
}

// SignOut はチケットCookieを削除する。
// POST /user/sign-out
func (h *UserHandler) SignOut(req *Request) (Result, error) {
	h.tickets.Forget(req.ResponseWriter())
	return OK(struct{}{}), nil
}
