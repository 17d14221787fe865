package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/choretracker/internal/model"
	"github.com/hitoshi/choretracker/internal/repository"
)

// Service はGoogleサインインのビジネスロジックを提供する。
type Service struct {
	validator IDTokenValidator
	userRepo  repository.UserRepository
}

// NewService は新しいServiceを生成する。
func NewService(validator IDTokenValidator, userRepo repository.UserRepository) *Service {
	return &Service{validator: validator, userRepo: userRepo}
}

// GoogleSignIn はIDトークンを検証し、対応するローカルユーザーを返す。
// 初回サインイン時はユーザーを作成する。
func (s *Service) GoogleSignIn(ctx context.Context, idToken string) (*model.GoogleSignInResult, error) {
	googleUID, err := s.validator.ValidateIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	result, err := s.userRepo.ResolveOrCreateGoogleUser(ctx, googleUID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve google user: %w", err)
	}

	slog.Info("google sign-in",
		slog.Int64("user_id", result.UserID),
		slog.Bool("has_profile", result.HasProfile),
	)
	return result, nil
}
