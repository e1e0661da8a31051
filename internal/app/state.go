package app

import (
	"fmt"

	"github.com/lmslight/lms-core/internal/models"
	"gorm.io/gorm"
)

// HasAdminUser reports whether at least one user holds the admin role.
func HasAdminUser(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}
