package repository

import (
	"errors"
	"fmt"

	"github.com/classpulse/classpulse-server/models"
	"github.com/classpulse/classpulse-server/models/dbmodels"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"k8s.io/klog/v2"
)

// Repository for SQL operations on notification preferences
type NotificationSettingsRepo struct {
	DB *gorm.DB
}

// Category -> column mapping. Only these names ever reach the query builder.
var categoryColumns = map[string]string{
	models.CategoryPost:         "post",
	models.CategoryNotes:        "notes",
	models.CategoryAnnouncement: "announcement",
	models.CategoryConnection:   "connection",
	models.CategorySchedule:     "schedule",
}

// GetOrCreate returns the user's settings row, creating the default
// (everything on) if none exists yet
func (repo *NotificationSettingsRepo) GetOrCreate(userID uuid.UUID) (*dbmodels.NotificationSetting, error) {
	var setting dbmodels.NotificationSetting
	err := repo.DB.Where("user_id = ?", userID).First(&setting).Error
	if err == nil {
		return &setting, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	setting = dbmodels.NotificationSetting{
		UserID:       userID,
		Master:       true,
		Post:         true,
		Notes:        true,
		Announcement: true,
		Connection:   true,
		Schedule:     true,
	}
	if err := repo.DB.Create(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

// UpdateSettings persists a full preference set for a user. Master off
// cascades to every category flag before the write.
func (repo *NotificationSettingsRepo) UpdateSettings(setting *dbmodels.NotificationSetting) error {
	setting.Normalize()
	existing, err := repo.GetOrCreate(setting.UserID)
	if err != nil {
		return err
	}
	return repo.DB.Model(existing).Updates(map[string]interface{}{
		"master":       setting.Master,
		"post":         setting.Post,
		"notes":        setting.Notes,
		"announcement": setting.Announcement,
		"connection":   setting.Connection,
		"schedule":     setting.Schedule,
	}).Error
}

// GetEligibleUserIDs returns ids of users whose master switch AND the given
// category flag are both on
func (repo *NotificationSettingsRepo) GetEligibleUserIDs(category string) ([]uuid.UUID, error) {
	column, ok := categoryColumns[category]
	if !ok {
		klog.Errorf("Unknown notification category %s", category)
		return nil, fmt.Errorf("unknown notification category: %s", category)
	}
	var ids []uuid.UUID
	err := repo.DB.Model(&dbmodels.NotificationSetting{}).
		Where("master = ?", true).
		Where(fmt.Sprintf("%s = ?", column), true).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateMockSettings seeds preference rows for repository tests
func (repo *NotificationSettingsRepo) CreateMockSettings(userIDs []uuid.UUID) error {
	for i, id := range userIDs {
		setting := dbmodels.NotificationSetting{
			UserID:       id,
			Master:       true,
			Post:         true,
			Notes:        i%2 == 0,
			Announcement: true,
			Connection:   true,
			Schedule:     true,
		}
		if err := repo.DB.Create(&setting).Error; err != nil {
			return err
		}
	}
	return nil
}
