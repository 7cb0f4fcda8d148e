package models

import "time"

type Course struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null;size:200"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null;size:50"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return "courses"
}

type Discipline struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:200"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Courses   []Course  `json:"courses,omitempty" gorm:"many2many:course_disciplines"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Discipline) TableName() string {
	return "disciplines"
}
