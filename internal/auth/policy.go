// Package auth はリクエストの認証主体の解決とGoogleサインインを提供する。
package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Policy はリクエストから認証主体を解決し、認証状態を記録・破棄する。
type Policy interface {
	// Resolve はリクエストの認証主体を返す。解決できない場合はokがfalseになる。
	// 失敗はエラーとせず匿名として扱う。
	Resolve(r *http.Request) (userID int64, ok bool)
	// Remember はレスポンスに認証状態を記録する。
	Remember(w http.ResponseWriter, userID int64) error
	// Forget はレスポンスで認証状態を破棄する。
	Forget(w http.ResponseWriter)
}

// TicketPolicyConfig はTicketPolicyの設定。
type TicketPolicyConfig struct {
	CookieName   string
	Domain       string
	Path         string
	Secure       bool
	ReauthPeriod time.Duration
}

// TicketPolicy は署名付きCookieチケットで認証主体を解決する。
type TicketPolicy struct {
	signer *TicketSigner
	cfg    TicketPolicyConfig
	now    func() time.Time
}

// NewTicketPolicy はTicketPolicyを生成する。
func NewTicketPolicy(signer *TicketSigner, cfg TicketPolicyConfig) *TicketPolicy {
	if cfg.CookieName == "" {
		cfg.CookieName = "AUTHTKT"
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &TicketPolicy{signer: signer, cfg: cfg, now: time.Now}
}

var _ Policy = (*TicketPolicy)(nil)

// Resolve はCookieのチケットを検証し、再認証期間内であればユーザーIDを返す。
func (p *TicketPolicy) Resolve(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(p.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return 0, false
	}

	t, err := p.signer.Verify(cookie.Value)
	if err != nil {
		slog.Debug("rejected auth ticket", slog.String("error", err.Error()))
		return 0, false
	}

	authenticatedAt := time.Unix(t.AuthenticatedAt, 0)
	if p.now().Sub(authenticatedAt) > p.cfg.ReauthPeriod {
		slog.Debug("auth ticket expired", slog.Int64("user_id", t.UserID))
		return 0, false
	}
	return t.UserID, true
}

// Remember はユーザーIDのチケットを発行してCookieに設定する。
func (p *TicketPolicy) Remember(w http.ResponseWriter, userID int64) error {
	value, err := p.signer.Sign(Ticket{UserID: userID, AuthenticatedAt: p.now().Unix()})
	if err != nil {
		return err
	}
	http.SetCookie(w, p.cookie(value, int(p.cfg.ReauthPeriod/time.Second)))
	return nil
}

// Forget はチケットCookieを削除する。
func (p *TicketPolicy) Forget(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie("", -1))
}

func (p *TicketPolicy) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.cfg.CookieName,
		Value:    value,
		Domain:   p.cfg.Domain,
		Path:     p.cfg.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// DefaultInsecureUserID はuser_idが指定されない場合に使うユーザーID。
const DefaultInsecureUserID int64 = 1

// InsecureQueryPolicy はクエリパラメータuser_idをそのまま認証主体とする。
// 開発モード専用。
type InsecureQueryPolicy struct{}

// NewInsecureQueryPolicy はInsecureQueryPolicyを生成する。
func NewInsecureQueryPolicy() *InsecureQueryPolicy {
	slog.Warn("insecure query-parameter authentication is enabled; do not use in production")
	return &InsecureQueryPolicy{}
}

var _ Policy = (*InsecureQueryPolicy)(nil)

// Resolve はuser_idクエリパラメータを返す。未指定または不正な場合はDefaultInsecureUserID。
func (p *InsecureQueryPolicy) Resolve(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || id <= 0 {
		return DefaultInsecureUserID, true
	}
	return id, true
}

// Remember は何もしない。
func (p *InsecureQueryPolicy) Remember(http.ResponseWriter, int64) error { return nil }

// Forget は何もしない。
func (p *InsecureQueryPolicy) Forget(http.ResponseWriter) {}
