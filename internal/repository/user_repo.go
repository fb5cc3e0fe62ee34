package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByExternalID(externalID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByStripeCustomerID(customerID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertFromProfile 按身份提供方 ID 创建或更新用户，邮箱和昵称以身份提供方为准。
// 邮箱已被其他用户占用时不写入邮箱，调用方可比较返回用户的邮箱判断
func (r *UserRepository) UpsertFromProfile(profile *dto.Profile) (*model.User, error) {
	var email *string
	if e := strings.TrimSpace(profile.Email); e != "" {
		email = &e
	}

	user, err := r.GetByExternalID(profile.ExternalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if email != nil {
			if taken, err := r.emailTakenByOther(*email, 0); err != nil {
				return nil, err
			} else if taken {
				email = nil
			}
		}
		user = &model.User{
			ExternalID: profile.ExternalID,
			Email:      email,
			Name:       profile.Name,
		}
		if err := r.db.Create(user).Error; err != nil {
			// 并发请求可能已经创建了该用户
			if existing, getErr := r.GetByExternalID(profile.ExternalID); getErr == nil {
				return existing, nil
			}
			if email == nil {
				return nil, err
			}
			// 邮箱在检查之后被占用，去掉邮箱重试
			user.ID = 0
			user.Email = nil
			if err := r.db.Create(user).Error; err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if email != nil && (user.Email == nil || *user.Email != *email) {
		taken, err := r.emailTakenByOther(*email, user.ID)
		if err != nil {
			return nil, err
		}
		if !taken {
			fields["email"] = *email
			user.Email = email
		}
	}
	if profile.Name != "" && user.Name != profile.Name {
		fields["name"] = profile.Name
		user.Name = profile.Name
	}
	if len(fields) > 0 {
		if err := r.UpdateFields(user.ID, fields); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// emailTakenByOther 邮箱是否已属于 userID 以外的用户
func (r *UserRepository) emailTakenByOther(email string, userID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).
		Where("email = ? AND id <> ?", email, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// SetStripeCustomerID 记录用户对应的 Stripe 客户
func (r *UserRepository) SetStripeCustomerID(id int64, customerID string) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error
}
