package controllers

import (
	"net/http"

	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// GetNotifications -> notifikasi yang boleh dilihat + jumlah unread
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	feed, err := nc.Notifications.List(c.Request.Context(), session)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", feed)
}

func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := nc.Notifications.MarkRead(c.Request.Context(), session, id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", gin.H{"id": id})
}

func (nc *NotificationController) MarkAllAsRead(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	n, err := nc.Notifications.MarkAllRead(c.Request.Context(), session)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": n})
}
