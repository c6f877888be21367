package repository

import (
	"errors"

	"github.com/classpulse/classpulse-server/models/dbmodels"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository for SQL operations on users and their device tokens
type UserRepo struct {
	DB *gorm.DB
}

func (repo *UserRepo) FindByID(id uuid.UUID) (*dbmodels.User, error) {
	var user dbmodels.User
	if err := repo.DB.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ListUsersWithDeviceTokens returns users that can actually receive a push:
// token registered, onboarding complete, not deleted, not blocked.
// A nil userIDs slice means all users.
func (repo *UserRepo) ListUsersWithDeviceTokens(userIDs []uuid.UUID) ([]dbmodels.User, error) {
	var users []dbmodels.User
	q := repo.DB.
		Where("device_token IS NOT NULL").
		Where("device_token <> ''").
		Where("onboarding_complete = ?", true).
		Where("is_deleted = ?", false).
		Where("is_blocked = ?", false)
	if userIDs != nil {
		q = q.Where("id IN ?", userIDs)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// AssignDeviceToken registers a token for a user. The same token is cleared
// from any other user first, a client install belongs to one account at a time.
func (repo *UserRepo) AssignDeviceToken(userID uuid.UUID, token string) error {
	return repo.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&dbmodels.User{}).
			Where("device_token = ?", token).
			Where("id <> ?", userID).
			Update("device_token", nil).Error; err != nil {
			return err
		}
		return tx.Model(&dbmodels.User{}).
			Where("id = ?", userID).
			Update("device_token", token).Error
	})
}

func (repo *UserRepo) ClearDeviceToken(userID uuid.UUID) error {
	return repo.DB.Model(&dbmodels.User{}).
		Where("id = ?", userID).
		Update("device_token", nil).Error
}

// ClearDeviceTokenByValue is the cleanup path for provider-confirmed dead
// tokens. The provider round trip only carries the token string, not the
// owning user id.
func (repo *UserRepo) ClearDeviceTokenByValue(token string) error {
	return repo.DB.Model(&dbmodels.User{}).
		Where("device_token = ?", token).
		Update("device_token", nil).Error
}

func strPtr(s string) *string {
	return &s
}

// CreateMockUsers seeds a handful of users for repository tests
func (repo *UserRepo) CreateMockUsers() ([]dbmodels.User, error) {
	users := []dbmodels.User{
		{
			Username:           "ada",
			Email:              "ada@classpulse.io",
			DeviceToken:        strPtr("ada-device-1dXyZ:APA91bAdaPayload_0-9"),
			OnboardingComplete: true,
		},
		{
			Username:           "grace",
			Email:              "grace@classpulse.io",
			DeviceToken:        strPtr("grace-device-2dXyZ:APA91bGracePayload_0"),
			OnboardingComplete: true,
		},
		{
			Username:           "alan",
			Email:              "alan@classpulse.io",
			DeviceToken:        strPtr("alan-device-3dXyZ:APA91bAlanPayload_42"),
			OnboardingComplete: true,
			IsBlocked:          true,
		},
		{
			Username:           "edsger",
			Email:              "edsger@classpulse.io",
			OnboardingComplete: true,
		},
	}
	for i := range users {
		if err := repo.DB.Create(&users[i]).Error; err != nil {
			return nil, err
		}
	}
	return users, nil
}
