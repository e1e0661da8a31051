package models

import "time"

// Class is a teaching group owned by a teacher.
type Class struct {
	ID string `gorm:"type:text;primaryKey"` // Primary key.

	Name      string `gorm:"type:text;not null"`       // Display name.
	TeacherID string `gorm:"type:text;not null;index"` // Owning teacher.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ClassStudent enrolls a student in a class.
type ClassStudent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ClassID   string `gorm:"type:text;not null;uniqueIndex:idx_class_students_class_student,priority:1"`       // Enrolled class.
	StudentID string `gorm:"type:text;not null;uniqueIndex:idx_class_students_class_student,priority:2;index"` // Enrolled student.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Enrollment timestamp.
}
