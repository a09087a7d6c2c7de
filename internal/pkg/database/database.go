package database

import "gorm.io/gorm"

var DB *gorm.DB

// GetDB returns the shared gorm handle set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}
