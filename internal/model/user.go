// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Name           string
	Gender         string
	Birthdate      *time.Time
	PreferredStyle string // 初回ログイン時に選択する好みのスタイル。未選択は空文字
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NeedsPreferenceSelection は好みのスタイルが未選択かどうかを返す。
func (u *User) NeedsPreferenceSelection() bool {
	return u.PreferredStyle == ""
}
