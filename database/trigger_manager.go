package database

import (
	"embed"
	"fmt"
	"strings"

	"github.com/citada/supplier-portal/utils"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ExecuteTriggers installs the change-journal triggers for the connected
// dialect. Statements in the script are separated by "//".
func ExecuteTriggers(db *gorm.DB) error {
	dialect := db.Dialector.Name()
	triggerSQL, err := migrations.ReadFile("migrations/triggers_" + dialect + ".sql")
	if err != nil {
		return fmt.Errorf("no change triggers for dialect %q: %w", dialect, err)
	}

	for _, stmt := range strings.Split(string(triggerSQL), "//") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			utils.ErrorLogger.Printf("Error executing trigger: %v\nStatement: %s", err, stmt)
			return err
		}
	}

	triggers, err := ListTriggers(db)
	if err != nil {
		return err
	}
	for _, t := range triggers {
		utils.InfoLogger.Printf("Trigger verified: %s", t)
	}
	return nil
}

// ListTriggers returns the names of the triggers present in the database.
func ListTriggers(db *gorm.DB) ([]string, error) {
	var query string
	switch db.Dialector.Name() {
	case "sqlite":
		query = `SELECT name FROM sqlite_master WHERE type = 'trigger' ORDER BY name`
	case "mysql":
		query = `SELECT TRIGGER_NAME FROM information_schema.triggers WHERE TRIGGER_SCHEMA = DATABASE() ORDER BY TRIGGER_NAME`
	case "postgres":
		query = `SELECT DISTINCT trigger_name FROM information_schema.triggers WHERE trigger_schema = current_schema() ORDER BY trigger_name`
	default:
		return nil, fmt.Errorf("unsupported dialect %q", db.Dialector.Name())
	}

	var names []string
	if err := db.Raw(query).Scan(&names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
