package main

import (
	"context"

	"github.com/citada/supplier-portal/config"
	"github.com/citada/supplier-portal/database"
	"github.com/citada/supplier-portal/middlewares"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/router"
	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// application is the wired portal: database, realtime hub, change monitor
// and HTTP router.
type application struct {
	DB      *gorm.DB
	Hub     *realtime.Hub
	Monitor *services.ChangeMonitor
	Offline *database.OfflineStore
	Router  *gin.Engine
}

func buildApp(cfg config.Config) (*application, error) {
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	utils.InfoLogger.Println("Migration completed.")

	offline, err := database.OpenOfflineStore(cfg.OfflineDBPath)
	if err != nil {
		return nil, err
	}
	if n, err := offline.Pending(context.Background()); err == nil && n > 0 {
		utils.InfoLogger.Printf("%d offline messages waiting to be flushed", n)
	}

	hub := realtime.NewHub()
	// change monitor: journal db_changes -> hub
	monitor := services.NewChangeMonitor(db, hub)
	monitor.Interval = cfg.Sync.ChangeInterval

	store := database.NewStore(db)
	roster := services.NewRosterService(store)
	r := router.SetupRouter(router.Dependencies{
		Hub: hub,
		Conversations: &services.ConversationService{
			Messages: store,
			Offline:  offline,
			Events:   store,
			Invites:  store,
			Profiles: store,
		},
		Pipeline: &services.SendPipeline{
			Auth:             middlewares.ContextAuthenticator{},
			Messages:         store,
			Notifications:    store,
			Profiles:         store,
			Events:           store,
			Offline:          offline,
			Realtime:         hub,
			BroadcastTimeout: cfg.Sync.BroadcastTimeout,
		},
		Notifications: services.NewNotificationService(store),
		Connections: &services.ConnectionService{
			Requests:      store,
			Notifications: store,
			Profiles:      store,
			Roster:        roster,
		},
		Roster:         roster,
		Sync:           cfg.SubscriptionConfig(),
		AllowedOrigins: cfg.AllowedOrigins,
		TLS:            cfg.TLS,
		RateLimit:      cfg.RateLimit,
		RateWindow:     cfg.RateWindow,
		SendEvery:      cfg.SendEvery,
		SendBurst:      cfg.SendBurst,
	})

	return &application{DB: db, Hub: hub, Monitor: monitor, Offline: offline, Router: r}, nil
}

func (a *application) Start() {
	a.Monitor.Start()
}

func (a *application) Close() {
	a.Monitor.Stop()
	a.Hub.Close()
	for _, db := range []*gorm.DB{a.DB, a.Offline.DB} {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
