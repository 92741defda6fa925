package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/citada/supplier-portal/database"
	"github.com/citada/supplier-portal/middlewares"
	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/router"
	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	supplier = models.Session{Role: models.RoleSupplier, UserID: "U-S", Email: "s@x.com"}
	admin    = models.Session{Role: models.RoleAdmin, UserID: "A1", Email: "admin@x.com"}
)

type portal struct {
	router *gin.Engine
	db     *gorm.DB
	store  *database.Store
	hub    *realtime.Hub
}

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ctl_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	// Seed: satu event, dua profil, satu undangan
	require.NoError(t, db.Create(&models.Event{ID: "E123", Name: "Gala", AdminID: "A1"}).Error)
	require.NoError(t, db.Create(&models.Profile{ID: "U-S", Email: "s@x.com", FullName: "Sam", CompanyName: "Acme Catering", UserType: models.RoleSupplier}).Error)
	require.NoError(t, db.Create(&models.Profile{ID: "A1", Email: "admin@x.com", FullName: "Ada", CompanyName: "Citada Events", UserType: models.RoleAdmin}).Error)
	require.NoError(t, db.Create(&models.Invite{EventID: "E123", SupplierEmail: "s@x.com", SupplierName: "Acme Catering", InvitedByAdminID: "A1"}).Error)
	return db
}

func testSyncConfig() services.SubscriptionConfig {
	return services.SubscriptionConfig{
		DebounceDelay:   20 * time.Millisecond,
		PollInterval:    time.Hour,
		PollRetryBase:   5 * time.Millisecond,
		PollMaxAttempts: 3,
		FetchTimeout:    time.Second,
		Reconnect: services.BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   2,
			MaxDelay:     40 * time.Millisecond,
			MaxAttempt:   5,
		},
	}
}

func newPortal(t *testing.T, tweak ...func(*router.Dependencies)) *portal {
	t.Helper()
	db := setupTestDB(t)
	offline, err := database.NewOfflineStore(db)
	require.NoError(t, err)
	store := database.NewStore(db)
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	roster := services.NewRosterService(store)
	deps := router.Dependencies{
		Hub: hub,
		Conversations: &services.ConversationService{
			Messages: store, Offline: offline, Events: store, Invites: store, Profiles: store,
		},
		Pipeline: &services.SendPipeline{
			Auth:             middlewares.ContextAuthenticator{},
			Messages:         store,
			Notifications:    store,
			Profiles:         store,
			Events:           store,
			Offline:          offline,
			Realtime:         hub,
			BroadcastTimeout: 200 * time.Millisecond,
		},
		Notifications: services.NewNotificationService(store),
		Connections: &services.ConnectionService{
			Requests: store, Notifications: store, Profiles: store, Roster: roster,
		},
		Roster: roster,
		Sync:   testSyncConfig(),
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	return &portal{router: router.SetupRouter(deps), db: db, store: store, hub: hub}
}

// serve runs the router on a test server. Its cleanup waits for every
// handler, websocket views included, to return before the hub is closed.
func (p *portal) serve(t *testing.T) *httptest.Server {
	t.Helper()
	var handlers sync.WaitGroup
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.Add(1)
		defer handlers.Done()
		p.router.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		done := make(chan struct{})
		go func() {
			handlers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("handlers still running after server close")
		}
	})
	return srv
}

func tokenFor(t *testing.T, s models.Session) string {
	t.Helper()
	token, err := utils.GenerateToken(s.UserID, s.Email, string(s.Role), time.Hour)
	require.NoError(t, err)
	return token
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *portal) do(t *testing.T, s *models.Session, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *s))
	}
	w := httptest.NewRecorder()
	p.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}
