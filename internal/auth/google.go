package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/choretracker/internal/model"
	"github.com/hitoshi/choretracker/internal/security"
)

const (
	// defaultGoogleCertsURL はGoogleの公開証明書エンドポイント。
	defaultGoogleCertsURL = "https://www.googleapis.com/oauth2/v1/certs"
	// defaultCertsMaxAge は証明書キャッシュの有効期間。
	defaultCertsMaxAge = time.Hour
	// maxCertsResponseSize は証明書レスポンスの最大サイズ（1MB）。
	maxCertsResponseSize = 1 << 20
	// certsFetchTimeout は証明書取得のタイムアウト。
	certsFetchTimeout = 10 * time.Second
)

// googleIssuers はGoogle IDトークンのissとして許可する値。
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// IDTokenValidator は外部IDトークンを検証して外部ユーザーIDを返す。
type IDTokenValidator interface {
	ValidateIDToken(ctx context.Context, idToken string) (string, error)
}

// CertRefreshObserver は証明書リフレッシュの結果を受け取る。
type CertRefreshObserver interface {
	ObserveCertRefresh(result string)
}

// GoogleValidatorConfig はGoogleSignInValidatorの設定。
// CertsURLとHTTPClientはテスト時に差し替え可能。
type GoogleValidatorConfig struct {
	ClientID   string
	CertsURL   string
	MaxAge     time.Duration
	HTTPClient *http.Client
	Observer   CertRefreshObserver
}

// certSet は取得済みの公開鍵セット。
type certSet struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// GoogleSignInValidator はGoogle IDトークンを検証する。
// 公開証明書は単一スロットにキャッシュし、期限切れ時に要求に応じて再取得する。
// 同時の再取得はsingleflightで1回にまとめ、スロットはアトミックに差し替える。
type GoogleSignInValidator struct {
	cfg   GoogleValidatorConfig
	slot  atomic.Pointer[certSet]
	group singleflight.Group
	now   func() time.Time
}

// NewGoogleSignInValidator はGoogleSignInValidatorを生成する。
// HTTPClientが未指定の場合はSSRF防止機能付きクライアントを使う。
func NewGoogleSignInValidator(cfg GoogleValidatorConfig) *GoogleSignInValidator {
	if cfg.CertsURL == "" {
		cfg.CertsURL = defaultGoogleCertsURL
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultCertsMaxAge
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = security.NewSSRFGuard().NewSafeClient(certsFetchTimeout)
	}
	return &GoogleSignInValidator{cfg: cfg, now: time.Now}
}

var _ IDTokenValidator = (*GoogleSignInValidator)(nil)

// ValidateIDToken はIDトークンの署名、audience、issuer、有効期限を検証し、subを返す。
// トークンが不正な場合はBadRequestのドメインエラーを返す。
// 証明書が1度も取得できていない場合はInternalのエラーを返す。
func (v *GoogleSignInValidator) ValidateIDToken(ctx context.Context, idToken string) (string, error) {
	keys, err := v.certificates(ctx)
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id: %q", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", model.NewInvalidIDTokenError(err)
	}
	if !googleIssuers[claims.Issuer] {
		return "", model.NewInvalidIDTokenError(fmt.Errorf("unexpected issuer: %q", claims.Issuer))
	}
	if claims.Subject == "" {
		return "", model.NewInvalidIDTokenError(errors.New("missing subject"))
	}
	return claims.Subject, nil
}

// certificates はキャッシュ済みの公開鍵を返す。期限切れの場合は再取得する。
// 再取得に失敗した場合、古い値があればそれを返す。
func (v *GoogleSignInValidator) certificates(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	current := v.slot.Load()
	if v.fresh(current) {
		return current.keys, nil
	}

	res, err, _ := v.group.Do("certs", func() (interface{}, error) {
		if c := v.slot.Load(); v.fresh(c) {
			return c, nil
		}
		set, err := v.fetch(context.WithoutCancel(ctx))
		if err != nil {
			v.observe("error")
			return nil, err
		}
		v.slot.Store(set)
		v.observe("success")
		return set, nil
	})
	if err != nil {
		if current != nil {
			slog.Warn("failed to refresh google certificates, using stale keys",
				slog.String("error", err.Error()),
				slog.Time("fetched_at", current.fetchedAt),
			)
			return current.keys, nil
		}
		return nil, fmt.Errorf("failed to load google certificates: %w", err)
	}
	return res.(*certSet).keys, nil
}

func (v *GoogleSignInValidator) fresh(c *certSet) bool {
	return c != nil && v.now().Sub(c.fetchedAt) < v.cfg.MaxAge
}

func (v *GoogleSignInValidator) observe(result string) {
	if v.cfg.Observer != nil {
		v.cfg.Observer.ObserveCertRefresh(result)
	}
}

// fetch は証明書エンドポイントからkid→PEM証明書のマップを取得して公開鍵に変換する。
func (v *GoogleSignInValidator) fetch(ctx context.Context) (*certSet, error) {
	ctx, cancel := context.WithTimeout(ctx, certsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.CertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create certs request: %w", err)
	}

	resp, err := v.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certs request failed with status %d", resp.StatusCode)
	}

	body, err := security.ReadLimited(resp.Body, maxCertsResponseSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read certs response: %w", err)
	}

	var pems map[string]string
	if err := json.Unmarshal(body, &pems); err != nil {
		return nil, fmt.Errorf("failed to decode certs response: %w", err)
	}
	if len(pems) == 0 {
		return nil, errors.New("certs response contains no keys")
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, pem := range pems {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %q: %w", kid, err)
		}
		keys[kid] = key
	}

	slog.Info("google certificates refreshed", slog.Int("keys", len(keys)))
	return &certSet{keys: keys, fetchedAt: v.now()}, nil
}
