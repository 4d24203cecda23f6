package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ Directory = (*GormDirectory)(nil)

// GormDirectory 数据库用户目录，用户名统一小写存储
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory 创建目录并迁移 users 表
func NewGormDirectory(db *gorm.DB) (*GormDirectory, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, err
	}
	return &GormDirectory{db: db}, nil
}

func (d *GormDirectory) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := d.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).Take(&u).Error
	return found(&u, err)
}

func (d *GormDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	return found(&u, err)
}

func (d *GormDirectory) Create(ctx context.Context, u *User) error {
	u.Username = strings.ToLower(u.Username)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleClient
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("username = ? OR id = ?", u.Username, u.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		return tx.Create(u).Error
	})
}

func (d *GormDirectory) SetTOTP(ctx context.Context, id, secret string) error {
	res := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"totp_secret": secret,
		"mfa_enabled": true,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func found(u *User, err error) (*User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
