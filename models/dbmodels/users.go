package dbmodels

// User rows carry the device token for push notifications.
// A token belongs to at most one user at a time; assignment steals it
// from any other row holding the same value.
type User struct {
	Base
	Username           string  `json:"username" gorm:"index:username_index,unique"`
	Email              string  `json:"email" gorm:"index:email_index,unique"`
	DeviceToken        *string `json:"-" gorm:"index:device_token_index"`
	OnboardingComplete bool    `json:"onboarding_complete" gorm:"default:false"`
	IsDeleted          bool    `json:"is_deleted" gorm:"default:false"`
	IsBlocked          bool    `json:"is_blocked" gorm:"default:false"`
}

// CanReceivePush - a user is reachable if they finished onboarding, are in
// good standing, and actually have a token registered
func (u *User) CanReceivePush() bool {
	return u.OnboardingComplete && !u.IsDeleted && !u.IsBlocked && u.DeviceToken != nil && *u.DeviceToken != ""
}
