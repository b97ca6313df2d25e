package service

import "errors"

// 校验错误
var (
	ErrGroupNameRequired = errors.New("group name required")
	ErrInvalidPrivacy    = errors.New("invalid privacy")
	ErrMessageEmpty      = errors.New("message text required")
	ErrUsernameRequired  = errors.New("username required")
	ErrPasswordRequired  = errors.New("password required")
)

// 访问控制与查找错误
var (
	ErrAccessDenied  = errors.New("access denied")
	ErrNotCreator    = error(deniedError("Only the creator can invite users"))
	ErrGroupNotFound = errors.New("group not found")
	ErrUserNotFound  = errors.New("User does not exist")
	ErrGroupExists   = errors.New("Group already exists")
)

// deniedError 文案原样展示给用户，同时 errors.Is(err, ErrAccessDenied) 成立
type deniedError string

func (e deniedError) Error() string { return string(e) }

func (e deniedError) Is(target error) bool { return target == ErrAccessDenied }

// 账户相关
var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionReplaced    = errors.New("account has been logged in elsewhere")
	ErrRefreshRevoked     = errors.New("refresh token revoked")
)

// IsValidation 用于 handler 层把错误映射成 400
func IsValidation(err error) bool {
	return errors.Is(err, ErrGroupNameRequired) ||
		errors.Is(err, ErrInvalidPrivacy) ||
		errors.Is(err, ErrMessageEmpty) ||
		errors.Is(err, ErrUsernameRequired) ||
		errors.Is(err, ErrPasswordRequired)
}
