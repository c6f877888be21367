package dbmodels

import "github.com/google/uuid"

// NotificationSetting stores per-user push preferences.
// A user is eligible for a category iff Master AND the category flag are true.
type NotificationSetting struct {
	Base
	UserID       uuid.UUID `json:"user_id" gorm:"index:settings_user_index,unique"`
	Master       bool      `json:"master" gorm:"default:true"`
	Post         bool      `json:"post" gorm:"default:true"`
	Notes        bool      `json:"notes" gorm:"default:true"`
	Announcement bool      `json:"announcement" gorm:"default:true"`
	Connection   bool      `json:"connection" gorm:"default:true"`
	Schedule     bool      `json:"schedule" gorm:"default:true"`
}

// Normalize enforces the master-switch cascade: master off forces every
// category flag off
func (s *NotificationSetting) Normalize() {
	if !s.Master {
		s.Post = false
		s.Notes = false
		s.Announcement = false
		s.Connection = false
		s.Schedule = false
	}
}
