package schema

import "github.com/hitoshi/choretracker/internal/model"

// UserProfile はユーザープロフィールのワイヤ表現。
type UserProfile struct {
	UserID        int64  `json:"userId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
}

// GoogleSignInResult はGoogleサインイン結果のワイヤ表現。
type GoogleSignInResult struct {
	UserID     int64 `json:"userId"`
	HasProfile bool  `json:"hasProfile"`
}

// LoadUserProfile はリクエストボディをプロフィール更新コマンドに変換する。
// userIdとemailVerifiedはサーバー側でのみ設定されるため拒否する。
func LoadUserProfile(body []byte) (model.UserProfileCommand, error) {
	l, err := newLoader(body)
	if err != nil {
		return model.UserProfileCommand{}, err
	}

	l.readOnly("userId", "emailVerified")
	cmd := model.UserProfileCommand{
		Email:       l.email("email"),
		DisplayName: l.trimmedStr("displayName"),
	}

	if err := l.err(); err != nil {
		return model.UserProfileCommand{}, err
	}
	return cmd, nil
}

// DumpUserProfile はユーザープロフィールをワイヤ表現に変換する。
func DumpUserProfile(p model.UserProfile) UserProfile {
	return UserProfile{
		UserID:        p.UserID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		EmailVerified: p.EmailVerified,
	}
}

// LoadGoogleSignIn はGoogleサインインのリクエストボディからIDトークンを取り出す。
func LoadGoogleSignIn(body []byte) (string, error) {
	l, err := newLoader(body)
	if err != nil {
		return "", err
	}

	idToken := l.nonEmptyStr("idToken")

	if err := l.err(); err != nil {
		return "", err
	}
	return idToken, nil
}

// DumpGoogleSignInResult はGoogleサインイン結果をワイヤ表現に変換する。
func DumpGoogleSignInResult(r model.GoogleSignInResult) GoogleSignInResult {
	return GoogleSignInResult{
		UserID:     r.UserID,
		HasProfile: r.HasProfile,
	}
}
