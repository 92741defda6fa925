package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/citada/supplier-portal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OfflineStore parks messages the backend refused in a database local to
// this node, usually its own sqlite file.
type OfflineStore struct {
	DB *gorm.DB
}

// OpenOfflineStore opens (or creates) the sqlite file at path.
func OpenOfflineStore(path string) (*OfflineStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open offline store: %w", err)
	}
	return NewOfflineStore(db)
}

func NewOfflineStore(db *gorm.DB) (*OfflineStore, error) {
	if err := db.AutoMigrate(&models.LocalMessage{}); err != nil {
		return nil, err
	}
	return &OfflineStore{DB: db}, nil
}

func (o *OfflineStore) Save(ctx context.Context, key models.ConversationKey, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return o.DB.WithContext(ctx).Create(&models.LocalMessage{
		ID:              msg.ID,
		ConversationKey: key.String(),
		Payload:         payload,
	}).Error
}

func (o *OfflineStore) List(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	var rows []models.LocalMessage
	if err := o.DB.WithContext(ctx).
		Where("conversation_key = ?", key.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		var msg models.Message
		if err := json.Unmarshal(row.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode offline message %s: %w", row.ID, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (o *OfflineStore) Remove(ctx context.Context, id string) error {
	return o.DB.WithContext(ctx).Delete(&models.LocalMessage{}, "id = ?", id).Error
}

func (o *OfflineStore) RecordFailure(ctx context.Context, id string, cause error) error {
	return o.DB.WithContext(ctx).Model(&models.LocalMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error
}

// Pending reports how many messages are parked across all conversations.
func (o *OfflineStore) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := o.DB.WithContext(ctx).Model(&models.LocalMessage{}).Count(&n).Error
	return n, err
}
