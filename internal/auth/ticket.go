package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// macSeparator はチケット値のペイロードとMACの区切り。
const macSeparator = ":mac="

var (
	// ErrMalformedTicket はチケット値の構造が不正な場合のエラー。
	ErrMalformedTicket = errors.New("malformed ticket")
	// ErrInvalidMAC はMACが一致しない場合のエラー。
	ErrInvalidMAC = errors.New("ticket MAC mismatch")
)

// Ticket は認証Cookieに格納する認証情報。
type Ticket struct {
	UserID          int64 `json:"userId"`
	AuthenticatedAt int64 `json:"authenticatedAt"`
}

var digests = map[string]func() hash.Hash{
	"sha256":   sha256.New,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"sha3-512": sha3.New512,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
	"blake2b-512": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
}

// TicketSigner はチケットの署名と検証を行う。
// 値の形式は base64url(JSON) + ":mac=" + hex(HMAC(secret, base64url(JSON)))。
type TicketSigner struct {
	secret  []byte
	newHash func() hash.Hash
}

// NewTicketSigner は指定ダイジェストのTicketSignerを生成する。
func NewTicketSigner(secret, digest string) (*TicketSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("ticket secret is empty")
	}
	newHash, ok := digests[strings.ToLower(digest)]
	if !ok {
		return nil, fmt.Errorf("unsupported ticket digest: %q", digest)
	}
	return &TicketSigner{secret: []byte(secret), newHash: newHash}, nil
}

// Sign はチケットを署名済みのCookie値にエンコードする。
func (s *TicketSigner) Sign(t Ticket) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	return payload + macSeparator + hex.EncodeToString(s.mac(payload)), nil
}

// Verify はCookie値を検証してチケットを返す。
// MACは定数時間で比較する。有効期限の判定は呼び出し側で行う。
func (s *TicketSigner) Verify(value string) (Ticket, error) {
	payload, macHex, ok := strings.Cut(value, macSeparator)
	if !ok || payload == "" || macHex == "" {
		return Ticket{}, ErrMalformedTicket
	}

	got, err := hex.DecodeString(macHex)
	if err != nil {
		return Ticket{}, ErrMalformedTicket
	}
	if !hmac.Equal(got, s.mac(payload)) {
		return Ticket{}, ErrInvalidMAC
	}

	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Ticket{}, ErrMalformedTicket
	}
	var t Ticket
	if err := json.Unmarshal(b, &t); err != nil {
		return Ticket{}, ErrMalformedTicket
	}
	if t.UserID <= 0 {
		return Ticket{}, fmt.Errorf("%w: non-positive user ID", ErrMalformedTicket)
	}
	return t, nil
}

func (s *TicketSigner) mac(payload string) []byte {
	m := hmac.New(s.newHash, s.secret)
	m.Write([]byte(payload))
	return m.Sum(nil)
}
