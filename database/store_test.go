package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func TestMigrateInstallsTriggers(t *testing.T) {
	db := setupTestDB(t)

	names, err := ListTriggers(db)
	require.NoError(t, err)
	assert.Contains(t, names, "trg_messages_after_insert")
	assert.Contains(t, names, "trg_notifications_after_insert")

	store := NewStore(db)
	ctx := context.Background()
	msg := &models.Message{EventID: "E1", Sender: "s@x.com", Receiver: "A1", SupplierEmail: "s@x.com", AdminID: "A1", Content: "Hello", MessageType: models.MessageSupplierToAdmin}
	require.NoError(t, store.CreateMessage(ctx, msg))

	var changes []models.DBChange
	require.NoError(t, db.Where("processed = ?", false).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, "messages", changes[0].TableName)
	assert.Equal(t, msg.ID, changes[0].RecordID)
	assert.Equal(t, models.ActionInsert, changes[0].ActionType)

	// triggers are idempotent
	assert.NoError(t, ExecuteTriggers(db))
}

func TestConversationMessagesScopesToSupplier(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := []models.Message{
		{ID: "m2", EventID: "E1", Sender: "A1", Receiver: "s@x.com", SupplierEmail: "s@x.com", AdminID: "A1", Content: "reply", Timestamp: base.Add(time.Minute), MessageType: models.MessageAdminToSupplier},
		{ID: "m1", EventID: "E1", Sender: "s@x.com", Receiver: "A1", SupplierEmail: "s@x.com", AdminID: "A1", Content: "hi", Timestamp: base, MessageType: models.MessageSupplierToAdmin},
		{ID: "m3", EventID: "E1", Sender: "other@x.com", Receiver: "A1", SupplierEmail: "other@x.com", AdminID: "A1", Content: "not mine", Timestamp: base, MessageType: models.MessageSupplierToAdmin},
		{ID: "m4", EventID: "E2", Sender: "s@x.com", Receiver: "A1", SupplierEmail: "s@x.com", AdminID: "A1", Content: "other event", Timestamp: base, MessageType: models.MessageSupplierToAdmin},
	}
	for i := range rows {
		require.NoError(t, store.CreateMessage(ctx, &rows[i]))
	}

	got, err := store.ConversationMessages(ctx, models.ConversationKey{EventID: "E1", AdminID: "A1", SupplierEmail: "S@x.com"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestNotificationsForRoles(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.Event{ID: "E1", Name: "Gala", AdminID: "A1"}).Error)

	seed := []models.Notification{
		{ID: "n1", Type: nil, AdminUserID: "A1", EventID: "E1", CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "n2", Type: models.StringPtr("task_assignment"), AdminUserID: "A1", SupplierEmail: "s@x.com", CreatedAt: now.Add(-4 * time.Minute)},
		{ID: "n3", Type: models.StringPtr("connection_accepted"), AdminUserID: "A1", SupplierEmail: "s@x.com", CreatedAt: now.Add(-3 * time.Minute)},
		{ID: "n4", Type: models.StringPtr("new_message"), AdminUserID: "A1", SupplierEmail: "S@X.com", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "n5", Type: models.StringPtr("new_message"), AdminUserID: "A2", SupplierEmail: "other@x.com", CreatedAt: now.Add(-time.Minute)},
	}
	for i := range seed {
		require.NoError(t, store.CreateNotification(ctx, &seed[i]))
	}

	admin := models.Session{Role: models.RoleAdmin, UserID: "A1"}
	rows, err := store.NotificationsFor(ctx, admin, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"n4", "n3", "n1"}, ids(rows))
	assert.Equal(t, "Gala", rows[2].EventName)
	assert.True(t, rows[2].Body.IsAbsent())

	supplier := models.Session{Role: models.RoleSupplier, UserID: "S1", Email: " s@x.com "}
	rows, err = store.NotificationsFor(ctx, supplier, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"n4", "n2"}, ids(rows))

	rows, err = store.NotificationsFor(ctx, supplier, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMarkNotificationsRead(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	for _, n := range []models.Notification{
		{ID: "n1", Type: models.StringPtr("new_message"), AdminUserID: "A1", SupplierEmail: "s@x.com"},
		{ID: "n2", Type: models.StringPtr("new_message"), AdminUserID: "A1", SupplierEmail: "s@x.com"},
		{ID: "n3", Type: models.StringPtr("new_message"), AdminUserID: "A2", SupplierEmail: "t@x.com"},
	} {
		n := n
		require.NoError(t, store.CreateNotification(ctx, &n))
	}

	admin := models.Session{Role: models.RoleAdmin, UserID: "A1"}

	n, err := store.MarkNotificationRead(ctx, admin, "n3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "other admin's notification must not be touched")

	n, err = store.MarkNotificationRead(ctx, admin, "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.MarkAllNotificationsRead(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var unread int64
	db.Model(&models.Notification{}).Where("status = ?", models.StatusUnread).Count(&unread)
	assert.Equal(t, int64(1), unread)
}

func TestRosterTables(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	admin := "admin@x.com"
	require.NoError(t, store.CreateTeamMember(ctx, models.TableLiaisons, &models.TeamMember{OwnerID: "S1", Name: "Ann", Email: "ann@x.com"}))
	require.NoError(t, store.CreateTeamMember(ctx, models.TableLiaisons, &models.TeamMember{OwnerID: "S1", Name: "Org", Email: admin, AdminEmail: &admin}))
	require.NoError(t, store.CreateTeamMember(ctx, models.TablePlanners, &models.TeamMember{OwnerID: "A1", Name: "Bob", Email: "bob@x.com"}))

	liaisons, err := store.TeamMembers(ctx, models.TableLiaisons, "S1")
	require.NoError(t, err)
	require.Len(t, liaisons, 2)
	assert.False(t, liaisons[0].IsConnection())
	assert.True(t, liaisons[1].IsConnection())

	planners, err := store.TeamMembers(ctx, models.TablePlanners, "A1")
	require.NoError(t, err)
	require.Len(t, planners, 1)

	n, err := store.DeleteTeamMember(ctx, models.TableLiaisons, "someone-else", liaisons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = store.DeleteTeamMember(ctx, models.TableLiaisons, "S1", liaisons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLookupsReturnNilWhenMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	p, err := store.ProfileByEmail(ctx, "nobody@x.com")
	assert.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, db.Create(&models.Profile{Email: "Vendor@x.com", CompanyName: "Vendor Co"}).Error)
	p, err = store.ProfileByEmail(ctx, " vendor@X.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Vendor Co", p.DisplayName())

	e, err := store.EventByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, e)

	r, err := store.ConnectionRequestByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestOfflineStore(t *testing.T) {
	db := setupTestDB(t)
	offline, err := NewOfflineStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	key := models.ConversationKey{EventID: "E1", AdminID: "A1", SupplierEmail: "s@x.com"}
	other := models.ConversationKey{EventID: "E2", AdminID: "A1", SupplierEmail: "s@x.com"}
	msg := models.Message{ID: "local-1", EventID: "E1", Sender: "s@x.com", Content: "queued", Timestamp: time.Now().UTC()}

	require.NoError(t, offline.Save(ctx, key, msg))
	require.NoError(t, offline.Save(ctx, other, models.Message{ID: "local-2", EventID: "E2"}))

	got, err := offline.List(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "queued", got[0].Content)

	require.NoError(t, offline.RecordFailure(ctx, "local-1", errors.New("still down")))
	var row models.LocalMessage
	require.NoError(t, db.First(&row, "id = ?", "local-1").Error)
	assert.Equal(t, 1, row.Attempts)
	assert.Equal(t, "still down", row.LastError)

	require.NoError(t, offline.Remove(ctx, "local-1"))
	got, err = offline.List(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)

	pending, err := offline.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func ids(rows []models.Notification) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
