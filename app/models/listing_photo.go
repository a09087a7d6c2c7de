package models

import "time"

// ListingPhoto references an object stored in S3 for a listing.
type ListingPhoto struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"not null;index" json:"listing_id"`
	ObjectKey string    `gorm:"type:varchar(512);not null" json:"object_key"`
	URL       string    `gorm:"type:varchar(512);not null" json:"url"`
	Position  int       `gorm:"default:0" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
