// Package auth はアクセストークン（JWT）の検証を提供する。
//
// 認証そのものは外部のIdPが行い、本サービスは発行済みトークンを検証して
// CurrentUserを得るだけの協調者として振る舞う。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/learnhub/internal/model"
)

// ErrInvalidToken はトークンが検証に失敗したことを示す。
var ErrInvalidToken = errors.New("invalid token")

// Claims はアクセストークンのクレーム。
// subjectがユーザーID、emailは任意。
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig はトークン検証の設定。
type VerifierConfig struct {
	Secret   string
	Issuer   string // 空の場合は検証しない
	Audience string // 空の場合は検証しない
	Leeway   time.Duration
}

// Verifier はHS256署名のJWTを検証する。
type Verifier struct {
	secret []byte
	parser *jwt.Parser
	cfg    VerifierConfig
}

// NewVerifier はVerifierを生成する。
func NewVerifier(cfg VerifierConfig) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
		cfg:    cfg,
	}
}

// Verify はトークンを検証してCurrentUserを返す。
// 署名・有効期限・issuer・audienceのいずれかが不正、またはsubjectがUUIDでない場合はErrInvalidTokenを返す。
func (v *Verifier) Verify(tokenStr string) (model.CurrentUser, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return model.CurrentUser{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.CurrentUser{}, ErrInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return model.CurrentUser{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !model.ValidID(sub) {
		return model.CurrentUser{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return model.CurrentUser{ID: sub, Email: claims.Email}, nil
}

// Issue は検証設定と同じissuer/audienceでトークンを発行する。
// 本番ではIdPが発行するため、ローカル開発とテストで使用する。
func (v *Verifier) Issue(user model.CurrentUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    v.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.cfg.Audience}
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(v.secret)
}
