package dto

import "github.com/qs3c/nextaction_server/internal/model"

// Profile is what the identity provider tells us about the caller.
type Profile struct {
	ExternalID string
	Email      string
	Name       string
}

// UserInfo is the response of GET /me.
type UserInfo struct {
	*model.User
	Billing *EntitlementStatus `json:"billing"`
}
