package router

import (
	"net/http"
	"time"

	"github.com/citada/supplier-portal/controllers"
	"github.com/citada/supplier-portal/middlewares"
	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/services"
	"github.com/gin-gonic/gin"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Hub           *realtime.Hub
	Conversations *services.ConversationService
	Pipeline      *services.SendPipeline
	Notifications *services.NotificationService
	Connections   *services.ConnectionService
	Roster        *services.RosterService
	Sync          services.SubscriptionConfig

	AllowedOrigins []string
	TLS            bool
	RateLimit      int
	RateWindow     time.Duration
	SendEvery      time.Duration
	SendBurst      int
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders(deps.TLS))
	r.Use(middlewares.CORSMiddlewares(deps.AllowedOrigins))
	r.Use(middlewares.LoggerMiddleware())
	if deps.RateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(deps.RateLimit, deps.RateWindow).RateLimit())
	}

	// Inisialisasi controller
	conversationCtrl := controllers.NewConversationController(deps.Conversations, deps.Pipeline)
	notificationCtrl := controllers.NewNotificationController(deps.Notifications)
	connectionCtrl := controllers.NewConnectionController(deps.Connections)
	teamCtrl := controllers.NewTeamController(deps.Roster)
	realtimeCtrl := controllers.NewRealtimeController(deps.Hub, deps.Conversations, deps.Pipeline, deps.Notifications, deps.Sync)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "realtime": deps.Hub.Stats()})
	})

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	// CONVERSATIONS
	api.GET("/conversations", conversationCtrl.ListConversations)
	api.GET("/conversations/:event_id/messages", conversationCtrl.GetMessages)
	send := api.Group("")
	if deps.SendBurst > 0 {
		send.Use(middlewares.NewSendLimiter(deps.SendEvery, deps.SendBurst).Limit())
	}
	send.POST("/conversations/:event_id/messages", conversationCtrl.SendMessage)
	api.POST("/conversations/:event_id/offline/flush", conversationCtrl.FlushOffline)

	// NOTIFICATIONS
	api.GET("/notifications", notificationCtrl.GetNotifications)
	api.PATCH("/notifications/:id/read", notificationCtrl.MarkAsRead)
	api.POST("/notifications/read-all", notificationCtrl.MarkAllAsRead)

	// CONNECTION REQUESTS (supplier)
	connections := api.Group("/connections")
	connections.Use(middlewares.RoleCheck(models.RoleSupplier))
	{
		connections.POST("/:id/accept", connectionCtrl.AcceptRequest)
		connections.POST("/:id/decline", connectionCtrl.DeclineRequest)
	}

	// TEAM (liaisons / planners)
	api.GET("/team", teamCtrl.GetTeam)
	api.POST("/team", teamCtrl.AddMember)
	api.DELETE("/team/:id", teamCtrl.RemoveMember)

	// WebSocket endpoint dengan middleware khusus
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/conversations/:event_id", realtimeCtrl.ConversationSocket)
		wsGroup.GET("/notifications", realtimeCtrl.NotificationSocket)
	}
	r.GET("/realtime/ws", middlewares.WebSocketAuthMiddleware(), realtimeCtrl.ChannelSocket)

	return r
}
