package models

import "github.com/dormstack/dormops_client/config"

// MigrateTable creates the local draft store schema.
func MigrateTable() error {
	db := config.GetDB()
	if db == nil {
		return nil
	}
	return db.AutoMigrate(&DraftCollection{})
}
