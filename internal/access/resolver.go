package access

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"groupchat/internal/model"

	"github.com/samber/lo"
)

// GroupIDLength 派生 id 取 sha256 十六进制的前 16 位
const GroupIDLength = 16

// NormalizeName trims the name and collapses every whitespace run to a single space.
func NormalizeName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// DeriveGroupID maps a raw group name to its store key. Names that normalize to the
// same string (case-insensitively) always share an id.
func DeriveGroupID(raw string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(NormalizeName(raw))))
	return hex.EncodeToString(sum[:])[:GroupIDLength]
}

// IsMember 成员集合中存在该用户即为成员；group 为空时拒绝
func IsMember(group *model.Group, username string) bool {
	if group == nil || username == "" {
		return false
	}
	return group.Members[username]
}

// IsCreator 与存储的 creator 做精确比较
func IsCreator(group *model.Group, username string) bool {
	if group == nil || username == "" {
		return false
	}
	return group.Creator == username
}

// ParseMembers splits a comma separated invite list, dropping blanks and duplicates.
func ParseMembers(input string) []string {
	names := lo.Map(strings.Split(input, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(names))
}
