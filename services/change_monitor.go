package services

import (
	"sync"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/utils"
	"gorm.io/gorm"
)

// ChangeMonitor turns the db_changes journal into realtime change events. A
// failed poll marks the hub disconnected so open channels reconnect.
type ChangeMonitor struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	StopChan  chan struct{}
	Interval  time.Duration
	BatchSize int

	stopOnce sync.Once
}

func NewChangeMonitor(db *gorm.DB, hub *realtime.Hub) *ChangeMonitor {
	return &ChangeMonitor{
		DB:        db,
		Hub:       hub,
		StopChan:  make(chan struct{}),
		Interval:  500 * time.Millisecond,
		BatchSize: 100,
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.checkChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.StopChan)
	})
}

func (cm *ChangeMonitor) checkChanges() error {
	var changes []models.DBChange
	var events []realtime.ChangeEvent

	// satu transaksi: baca journal lalu tandai processed
	err := cm.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("processed = ?", false).
			Order("id ASC").
			Limit(cm.BatchSize).
			Find(&changes).Error; err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(changes))
		for _, change := range changes {
			ids = append(ids, change.ID)
			ev, err := cm.loadChange(tx, change)
			if err != nil {
				utils.ErrorLogger.Printf("Error loading %s %s: %v", change.TableName, change.RecordID, err)
				continue
			}
			if ev != nil {
				events = append(events, *ev)
			}
		}
		return tx.Model(&models.DBChange{}).
			Where("id IN ?", ids).
			Update("processed", true).Error
	})
	if err != nil {
		utils.ErrorLogger.Printf("Error processing change journal: %v", err)
		cm.Hub.MarkDisconnected(err)
		return err
	}
	cm.Hub.MarkConnected()

	for _, ev := range events {
		cm.Hub.Publish(ev)
	}
	if len(changes) > 0 {
		utils.InfoLogger.Debugf("Processed %d changes, published %d events", len(changes), len(events))
	}
	return nil
}

func (cm *ChangeMonitor) loadChange(tx *gorm.DB, change models.DBChange) (*realtime.ChangeEvent, error) {
	ev := &realtime.ChangeEvent{
		Table:    change.TableName,
		Action:   change.ActionType,
		RecordID: change.RecordID,
		At:       change.ChangedAt,
	}

	switch change.TableName {
	case "messages":
		var msg models.Message
		if change.ActionType != models.ActionDelete {
			res := tx.Limit(1).Find(&msg, "id = ?", change.RecordID)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				return nil, nil
			}
		} else {
			msg.ID = change.RecordID
		}
		ev.Message = &msg
	case "notifications":
		var notif models.Notification
		if change.ActionType != models.ActionDelete {
			res := tx.Limit(1).Find(&notif, "id = ?", change.RecordID)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				return nil, nil
			}
		} else {
			notif.ID = change.RecordID
		}
		ev.Notification = &notif
	default:
		return nil, nil
	}
	return ev, nil
}
