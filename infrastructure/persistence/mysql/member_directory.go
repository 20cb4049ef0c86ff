package mysql

import (
	"context"
	"errors"

	"storefront/infrastructure/persistence/mysql/po"

	"gorm.io/gorm"
)

// MemberDirectory answers whether a user holds a membership; unknown users are not members
type MemberDirectory struct {
	db *gorm.DB
}

func NewMemberDirectory(db *gorm.DB) *MemberDirectory {
	return &MemberDirectory{db: db}
}

func (r *MemberDirectory) IsMember(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	var user po.UserPO
	err := r.db.WithContext(ctx).Select("id", "is_member").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsMember, nil
}
