package database

import (
	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
	"gorm.io/gorm"
)

// Migrate creates the portal schema and installs the change triggers.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.Event{},
		&models.Invite{},
		&models.ConnectionRequest{},
		&models.Message{},
		&models.Notification{},
		&models.DBChange{},
	)
	if err != nil {
		return err
	}
	for _, table := range []string{models.TableLiaisons, models.TablePlanners} {
		if err := db.Table(table).AutoMigrate(&models.TeamMember{}); err != nil {
			return err
		}
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	return ExecuteTriggers(db)
}
