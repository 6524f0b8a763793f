package database

import (
	"encoding/json"
	"errors"
	"log"

	"budgetflow/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM and prepares the schema
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to migrate schema:", err)
	}

	return db, nil
}

// Migrate auto-migrates the core models and seeds the default approval
// hierarchy config if none exists yet.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Department{},
		&model.BudgetRequest{},
		&model.ApprovalRecord{},
		&model.SystemConfig{},
		&model.AuditLog{},
	)
	if err != nil {
		return err
	}

	return seedHierarchy(db)
}

func seedHierarchy(db *gorm.DB) error {
	var cfg model.SystemConfig
	err := db.First(&cfg, "key = ?", model.ConfigKeyApprovalHierarchy).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	value, err := json.Marshal(model.DefaultApprovalHierarchy)
	if err != nil {
		return err
	}

	return db.Create(&model.SystemConfig{
		Key:     model.ConfigKeyApprovalHierarchy,
		Value:   string(value),
		Version: 1,
	}).Error
}
