// Package account 用户目录：按用户名查找账号并校验密码。
package account

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("account: user not found")
	ErrExists             = errors.New("account: user already exists")
	ErrInvalidCredentials = errors.New("account: invalid credentials")
)

// 角色
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User 账号
type User struct {
	ID           string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:32;not null;default:client"`
	MFAEnabled   bool
	// TOTP 密钥，为空时通过一次性验证码完成 MFA
	TOTPSecret string `gorm:"size:128"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 表名
func (User) TableName() string { return "users" }

// Directory 用户目录
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
	// SetTOTP 保存 TOTP 密钥并开启 MFA
	SetTOTP(ctx context.Context, id, secret string) error
}

// Hasher bcrypt 密码哈希
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher cost 超出范围时取 bcrypt.DefaultCost
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// 用户不存在时也做一次比较，使耗时一致
	dummy, _ := bcrypt.GenerateFromPassword([]byte("authgate-dummy-password"), cost)
	return &Hasher{cost: cost, dummy: dummy}
}

// Hash 生成密码哈希
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare 密码匹配返回 true
func (h *Hasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate 校验用户名与密码，用户不存在与密码错误都返回 ErrInvalidCredentials
func (h *Hasher) Authenticate(ctx context.Context, dir Directory, username, password string) (*User, error) {
	u, err := dir.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !h.Compare(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
