package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/choretracker/internal/model"
)

const userProfileColumns = `user_id, email, display_name, email_verified`

// PostgresUserRepo はユーザー、プロフィール、Google連携の関数を呼び出すリポジトリ。
type PostgresUserRepo struct {
	store
}

var _ UserRepository = (*PostgresUserRepo)(nil)

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB, timeout time.Duration) *PostgresUserRepo {
	return &PostgresUserRepo{store: newStore(db, timeout)}
}

// FetchUserProfile はユーザーのプロフィールを返す。
func (r *PostgresUserRepo) FetchUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	profile := &model.UserProfile{}
	err := r.db.GetContext(ctx, profile,
		`SELECT `+userProfileColumns+` FROM api.fetch_user_profile($1)`,
		userID,
	)
	if err != nil {
		return nil, translate("fetch user profile", err, target{userID: userID})
	}
	return profile, nil
}

// CreateOrUpdateUserProfile はプロフィールを作成または更新する。
// メールアドレスが変わった場合、email_verifiedはストア側でfalseに戻る。
func (r *PostgresUserRepo) CreateOrUpdateUserProfile(ctx context.Context, userID int64, cmd model.UserProfileCommand) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, profile,
			`SELECT `+userProfileColumns+` FROM api.create_or_update_user_profile($1, $2, $3)`,
			userID, cmd.Email, cmd.DisplayName,
		)
	})
	if err != nil {
		return nil, translate("create or update user profile", err, target{userID: userID})
	}
	return profile, nil
}

// ResolveOrCreateGoogleUser はGoogleアカウントIDに紐づくユーザーを返し、未登録の場合は作成する。
func (r *PostgresUserRepo) ResolveOrCreateGoogleUser(ctx context.Context, googleUID string) (*model.GoogleSignInResult, error) {
	result := &model.GoogleSignInResult{}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.GetContext(ctx, result,
			`SELECT user_id, has_profile FROM api.google_auth_fetch_existing_user_id_or_create($1)`,
			googleUID,
		)
	})
	if err != nil {
		return nil, translate("resolve google user", err, target{})
	}
	return result, nil
}
