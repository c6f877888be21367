package repository

import (
	"os"
	"testing"

	"github.com/classpulse/classpulse-server/database"
	"github.com/classpulse/classpulse-server/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func mockDBConnection(t *testing.T) *gorm.DB {
	if os.Getenv("DB_MOCK_HOST") == "" {
		t.Skip("DB_MOCK_HOST not set")
	}
	mockDb, err := database.NewConnection(&database.Config{
		Host:     os.Getenv("DB_MOCK_HOST"),
		Port:     os.Getenv("DB_MOCK_PORT"),
		Password: os.Getenv("DB_MOCK_PASS"),
		User:     os.Getenv("DB_MOCK_USER"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
		DBName:   "testing",
	})
	utils.AssertEqual(t, nil, err)
	err = database.DropAndCreateTables(mockDb)
	utils.AssertEqual(t, nil, err)
	return mockDb
}

func TestListUsersWithDeviceTokens(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	mockDb := mockDBConnection(t)
	userRepo := &UserRepo{
		DB: mockDb,
	}

	users, err := userRepo.CreateMockUsers()
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 4, len(users))

	// alan is blocked, edsger has no token
	eligible, err := userRepo.ListUsersWithDeviceTokens(nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 2, len(eligible))

	// Restricting to a subset
	eligible, err = userRepo.ListUsersWithDeviceTokens([]uuid.UUID{users[0].ID})
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 1, len(eligible))
	utils.AssertEqual(t, "ada", eligible[0].Username)
}

func TestAssignDeviceToken(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	mockDb := mockDBConnection(t)
	userRepo := &UserRepo{
		DB: mockDb,
	}

	users, err := userRepo.CreateMockUsers()
	utils.AssertEqual(t, nil, err)

	// Registering ada's token to grace steals it
	err = userRepo.AssignDeviceToken(users[1].ID, *users[0].DeviceToken)
	utils.AssertEqual(t, nil, err)

	ada, err := userRepo.FindByID(users[0].ID)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, true, ada.DeviceToken == nil)

	grace, err := userRepo.FindByID(users[1].ID)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, *users[0].DeviceToken, *grace.DeviceToken)
}

func TestClearDeviceTokenByValue(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	mockDb := mockDBConnection(t)
	userRepo := &UserRepo{
		DB: mockDb,
	}

	users, err := userRepo.CreateMockUsers()
	utils.AssertEqual(t, nil, err)

	err = userRepo.ClearDeviceTokenByValue(*users[0].DeviceToken)
	utils.AssertEqual(t, nil, err)

	ada, err := userRepo.FindByID(users[0].ID)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, true, ada.DeviceToken == nil)

	eligible, err := userRepo.ListUsersWithDeviceTokens(nil)
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, 1, len(eligible))
}

func TestFindByIDNotFound(t *testing.T) {
	os.Setenv("MOCK_REDIS", "true")
	defer os.Unsetenv("MOCK_REDIS")
	mockDb := mockDBConnection(t)
	userRepo := &UserRepo{
		DB: mockDb,
	}

	user, err := userRepo.FindByID(uuid.New())
	utils.AssertEqual(t, nil, err)
	utils.AssertEqual(t, true, user == nil)
}
