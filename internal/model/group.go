package model

import "time"

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// Valid 仅校验取值，隐私级别本身不做访问控制
func (p Privacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

type Group struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Creator   string          `json:"creator"`
	Privacy   Privacy         `json:"privacy"`
	CreatedAt time.Time       `json:"created_at"`
	Members   map[string]bool `json:"members"`
}

type Message struct {
	Key       string    `json:"key"` // 追加时生成的键
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
