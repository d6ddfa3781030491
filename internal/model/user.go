// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentUser は認証済みの呼び出し元を表す。
// 認証基盤（JWT）から取得し、各サービス呼び出しに明示的に渡す。
type CurrentUser struct {
	ID    string
	Email string
}

// ValidID はidがハイフン区切り36文字のUUIDかを返す。
// 各テーブルの主キーと外部キーはuuid型。
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Profile はユーザーの連絡先・本人情報を表す。Userと1対1。
type Profile struct {
	UserID      string
	FullName    string
	Email       string
	Phone       string
	Address     string
	City        string
	State       string
	Country     string
	DateOfBirth *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultCountry はプロフィールの国が未入力の場合の既定値。
const DefaultCountry = "Nigeria"

// IsComplete はプロフィールが受講登録の前提を満たすかを返す。
// 氏名が空白以外で入力されていれば完成とみなす。
func (p *Profile) IsComplete() bool {
	return p != nil && strings.TrimSpace(p.FullName) != ""
}

// Role はユーザーの権限ロールを表す。閉じた列挙で扱う。
type Role string

const (
	// RoleUser はサインアップ時に付与される既定ロール。
	RoleUser Role = "user"
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "admin"
	// RoleModerator はモデレーターロール。
	RoleModerator Role = "moderator"
)

// ParseRole は文字列をRoleに変換する。未定義のロールはエラー。
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleModerator:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// RoleAssignment はユーザーとロールの組を表す。
type RoleAssignment struct {
	UserID string
	Role   Role
}

// UserWithRoles は管理画面のユーザー一覧の1行を表す。
type UserWithRoles struct {
	Profile
	Roles []Role
}
