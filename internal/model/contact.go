package model

import (
	"fmt"
	"time"
)

// ContactStatus は問い合わせの対応状況を表す。
type ContactStatus string

const (
	// ContactStatusNew は未対応。
	ContactStatusNew ContactStatus = "new"
	// ContactStatusInProgress は対応中。
	ContactStatusInProgress ContactStatus = "in_progress"
	// ContactStatusResolved は対応完了。
	ContactStatusResolved ContactStatus = "resolved"
)

// contactStatusRank は状態の前後関係を表す。
var contactStatusRank = map[ContactStatus]int{
	ContactStatusNew:        0,
	ContactStatusInProgress: 1,
	ContactStatusResolved:   2,
}

// ParseContactStatus は文字列をContactStatusに変換する。
func ParseContactStatus(s string) (ContactStatus, error) {
	st := ContactStatus(s)
	if _, ok := contactStatusRank[st]; !ok {
		return "", fmt.Errorf("unknown contact status: %q", s)
	}
	return st, nil
}

// CanMoveTo は new → in_progress → resolved の順方向（スキップ可）かを返す。
// 同一状態への遷移は冪等な no-op として許可する。
func (s ContactStatus) CanMoveTo(to ContactStatus) bool {
	from, ok := contactStatusRank[s]
	if !ok {
		return false
	}
	target, ok := contactStatusRank[to]
	if !ok {
		return false
	}
	return target >= from
}

// ContactSubmission はお問い合わせフォームの送信内容を表す。
type ContactSubmission struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Subject   string
	Message   string
	Status    ContactStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
