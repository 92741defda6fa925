package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/realtime"
	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const socketWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin dibatasi oleh CORS + token
	},
}

// RealtimeController serves the live views over websockets.
type RealtimeController struct {
	Hub           *realtime.Hub
	Conversations *services.ConversationService
	Pipeline      *services.SendPipeline
	Notifications *services.NotificationService
	Sync          services.SubscriptionConfig
}

func NewRealtimeController(hub *realtime.Hub, conversations *services.ConversationService, pipeline *services.SendPipeline, notifications *services.NotificationService, syncCfg services.SubscriptionConfig) *RealtimeController {
	return &RealtimeController{
		Hub:           hub,
		Conversations: conversations,
		Pipeline:      pipeline,
		Notifications: notifications,
		Sync:          syncCfg,
	}
}

// clientFrame is what browsers send on a view socket.
type clientFrame struct {
	Type              string `json:"type"`
	Content           string `json:"content,omitempty"`
	AuthorDisplayName string `json:"author_display_name,omitempty"`
	ID                string `json:"id,omitempty"`
}

// socket serialises writes to one websocket connection.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *logrus.Entry
}

func (s *socket) send(event string, data interface{}) {
	payload, err := json.Marshal(realtime.Message{Event: event, Data: data})
	if err != nil {
		s.log.Errorf("Error encoding %s frame: %v", event, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.log.Debugf("Error writing %s frame: %v", event, err)
	}
}

func (s *socket) sendError(err error) {
	s.send("error", gin.H{"message": err.Error()})
}

// ConversationSocket -> satu view percakapan per koneksi
func (rc *RealtimeController) ConversationSocket(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	key, err := rc.Conversations.ResolveKey(c.Request.Context(), session, c.Param("event_id"), c.Query("supplier_email"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	sock := &socket{conn: ws, log: utils.InfoLogger.WithFields(logrus.Fields{
		"view":    uuid.NewString(),
		"channel": key.ChannelName(),
	})}
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	view, err := services.OpenConversationView(ctx, rc.Hub, rc.Conversations, rc.Pipeline, rc.Sync, session, key, func(msgs []models.Message) {
		sock.send(realtime.EventSnapshot, msgs)
	})
	if err != nil {
		sock.sendError(err)
		return
	}
	defer view.Close()
	sock.log.Info("conversation view opened")

	for {
		var frame clientFrame
		if err := ws.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case "send":
			res, err := view.Send(ctx, frame.AuthorDisplayName, frame.Content)
			if err != nil {
				sock.sendError(err)
				continue
			}
			sock.send("send_result", res)
		case "flush":
			res, err := view.FlushOffline(ctx)
			if err != nil {
				sock.sendError(err)
				continue
			}
			sock.send("flush_result", res)
		default:
			sock.send("error", gin.H{"message": "unknown frame type " + frame.Type})
		}
	}
	sock.log.Info("conversation view closed")
}

// NotificationSocket keeps a notification bell live for the caller.
func (rc *RealtimeController) NotificationSocket(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	sock := &socket{conn: ws, log: utils.InfoLogger.WithFields(logrus.Fields{
		"view": uuid.NewString(),
		"role": session.Role,
	})}
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	bell, err := services.OpenNotificationBell(ctx, rc.Hub, rc.Notifications, rc.Sync, session, func(feed services.NotificationFeed) {
		sock.send("notifications", feed)
	})
	if err != nil {
		sock.sendError(err)
		return
	}
	defer bell.Close()

	for {
		var frame clientFrame
		if err := ws.ReadJSON(&frame); err != nil {
			break
		}
		switch frame.Type {
		case "mark_read":
			if err := rc.Notifications.MarkRead(ctx, session, frame.ID); err != nil {
				sock.sendError(err)
			}
		case "mark_all_read":
			if _, err := rc.Notifications.MarkAllRead(ctx, session); err != nil {
				sock.sendError(err)
			}
		default:
			sock.send("error", gin.H{"message": "unknown frame type " + frame.Type})
		}
	}
}

// ChannelSocket attaches a raw websocket peer to broadcast channels the
// caller is a party of.
func (rc *RealtimeController) ChannelSocket(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	channels := c.QueryArray("channel")
	if len(channels) == 0 {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	for _, name := range channels {
		if !CanListen(session, name) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	identity := session.UserID
	if err := rc.Hub.RegisterPeer(ws, identity, channels...); err != nil {
		ws.Close()
		return
	}

	// Baca pesan sampai client disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	rc.Hub.UnregisterPeer(ws)
}

// CanListen reports whether session is a party of the named channel.
func CanListen(session models.Session, channel string) bool {
	parts := strings.SplitN(channel, ":", 4)
	switch {
	case len(parts) == 4 && parts[0] == "messages":
		if session.IsAdmin() {
			return parts[2] == session.UserID
		}
		return models.NormalizeEmail(parts[3]) == session.NormalizedEmail()
	case len(parts) == 3 && parts[0] == "notifications":
		if models.Role(parts[1]) != session.Role {
			return false
		}
		if session.IsAdmin() {
			return parts[2] == session.UserID
		}
		return models.NormalizeEmail(parts[2]) == session.NormalizedEmail()
	default:
		return false
	}
}
