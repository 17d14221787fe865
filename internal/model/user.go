package model

// UserProfile は認証とは無関係なユーザー詳細情報を表す。
// UserIDとEmailVerifiedはサーバー側でのみ設定される。
type UserProfile struct {
	UserID        int64  `db:"user_id"`
	Email         string `db:"email"`
	DisplayName   string `db:"display_name"`
	EmailVerified bool   `db:"email_verified"`
}

// UserProfileCommand はクライアント入力から検証済みのプロフィール更新コマンド。
type UserProfileCommand struct {
	Email       string
	DisplayName string
}

// GoogleSignInResult はGoogleサインインによるユーザー解決の結果を表す。
type GoogleSignInResult struct {
	UserID     int64 `db:"user_id"`
	HasProfile bool  `db:"has_profile"`
}
