// Package access answers whether a user may see class-scoped data.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmslight/lms-core/internal/models"

	"gorm.io/gorm"
)

// Principal identifies the caller of a request.
type Principal struct {
	UserID string
	Role   string
}

// IsStaff reports whether the principal may manage other users' limits.
func (p Principal) IsStaff() bool {
	return p.Role == models.RoleAdmin || p.Role == models.RoleTeacher
}

// ClassChecker decides class membership.
type ClassChecker interface {
	// CanAccessClass reports whether p teaches or is enrolled in classID. Admins see every class.
	CanAccessClass(ctx context.Context, p Principal, classID string) (bool, error)
}

// GormClassChecker resolves membership from the classes and class_students tables.
type GormClassChecker struct {
	db *gorm.DB
}

// NewGormClassChecker constructs a GormClassChecker.
func NewGormClassChecker(db *gorm.DB) *GormClassChecker {
	return &GormClassChecker{db: db}
}

// CanAccessClass implements ClassChecker.
func (g *GormClassChecker) CanAccessClass(ctx context.Context, p Principal, classID string) (bool, error) {
	classID = strings.TrimSpace(classID)
	userID := strings.TrimSpace(p.UserID)
	if classID == "" || userID == "" {
		return false, nil
	}

	q := g.db.WithContext(ctx).Model(&models.Class{}).Where("id = ?", classID)
	if p.Role != models.RoleAdmin {
		q = q.Where(
			"teacher_id = ? OR EXISTS (SELECT 1 FROM class_students WHERE class_students.class_id = classes.id AND class_students.student_id = ?)",
			userID, userID,
		)
	}
	var count int64
	if errCount := q.Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("access: check class: %w", errCount)
	}
	return count > 0, nil
}
