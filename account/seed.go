package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/kochabx/authgate/log"
)

// SeedUser 启动时预置的账号，只接受 bcrypt 哈希，不接受明文密码
type SeedUser struct {
	Username     string `json:"username" mapstructure:"username" validate:"required"`
	PasswordHash string `json:"password_hash" mapstructure:"password_hash" validate:"required,startswith=$2"`
	Role         string `json:"role" mapstructure:"role" default:"client" validate:"omitempty,oneof=client admin"`
	MFAEnabled   bool   `json:"mfa_enabled" mapstructure:"mfa_enabled"`
	TOTPSecret   string `json:"totp_secret" mapstructure:"totp_secret"`
}

// Seed 创建尚不存在的账号，已存在的跳过。Role 为空时为 client
func Seed(ctx context.Context, dir Directory, users []SeedUser) error {
	for _, s := range users {
		if s.Role == "" {
			s.Role = RoleClient
		}
		err := dir.Create(ctx, &User{
			Username:     s.Username,
			PasswordHash: s.PasswordHash,
			Role:         s.Role,
			MFAEnabled:   s.MFAEnabled,
			TOTPSecret:   s.TOTPSecret,
		})
		switch {
		case errors.Is(err, ErrExists):
			continue
		case err != nil:
			return fmt.Errorf("seed user %s: %w", s.Username, err)
		}
		log.G.Info().Str("username", s.Username).Str("role", s.Role).Msg("account seeded")
	}
	return nil
}
