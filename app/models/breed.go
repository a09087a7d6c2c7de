package models

import "time"

// Breed is a lookup entity used when composing listings and notifications.
type Breed struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null;uniqueIndex" json:"name"`
	Species   string    `gorm:"type:varchar(50);not null;index" json:"species"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
