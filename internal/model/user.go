package model

import (
	"time"
)

type User struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	ExternalID       string    `gorm:"column:external_id;size:100;uniqueIndex;not null" json:"externalId"`
	Email            *string   `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	Name             string    `gorm:"size:200" json:"name"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;size:100;uniqueIndex" json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	Entitlement *Entitlement `gorm:"foreignKey:UserID" json:"entitlement,omitempty"`
}

func (User) TableName() string {
	return "users"
}
