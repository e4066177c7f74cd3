package utils

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"renewly/config"
	"renewly/models"
)

// openTestDB returns an in-memory database carrying the full schema.
// Capped at one connection so every query sees the same memory store.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.MigrateDB(db))
	return db
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{Email: email, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// createTeam seeds a team with the owner as super-admin plus the default
// status set, the same shape CreateTeam produces.
func createTeam(t *testing.T, db *gorm.DB, ownerID uint) *models.Team {
	t.Helper()
	team := models.Team{Name: fmt.Sprintf("team-of-%d", ownerID)}
	require.NoError(t, db.Create(&team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID:       team.ID,
		UserID:       ownerID,
		Role:         models.RoleAdmin,
		IsSuperAdmin: true,
	}).Error)
	statuses := models.DefaultStatuses(team.ID)
	require.NoError(t, db.Create(&statuses).Error)
	return &team
}

func addMember(t *testing.T, db *gorm.DB, teamID, userID uint, role models.Role) *models.TeamMember {
	t.Helper()
	member := models.TeamMember{TeamID: teamID, UserID: userID, Role: role}
	require.NoError(t, db.Create(&member).Error)
	return &member
}

// statusByCategory looks up one of the seeded statuses of a team
func statusByCategory(t *testing.T, db *gorm.DB, teamID uint, category models.StatusCategory) *models.ProjectStatus {
	t.Helper()
	var status models.ProjectStatus
	require.NoError(t, db.Where("team_id = ? AND category = ?", teamID, category).First(&status).Error)
	return &status
}
