package controllers

import (
	"net/http"

	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

type ConversationController struct {
	Conversations *services.ConversationService
	Pipeline      *services.SendPipeline
}

func NewConversationController(conversations *services.ConversationService, pipeline *services.SendPipeline) *ConversationController {
	return &ConversationController{Conversations: conversations, Pipeline: pipeline}
}

type sendMessageRequest struct {
	Content           string `json:"content" binding:"required"`
	AuthorDisplayName string `json:"author_display_name"`
}

// ListConversations -> directory percakapan milik user
func (cc *ConversationController) ListConversations(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	list, err := cc.Conversations.Directory(c.Request.Context(), session)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conversations", list)
}

func (cc *ConversationController) GetMessages(c *gin.Context) {
	session, key, ok := cc.resolve(c)
	if !ok {
		return
	}
	msgs, err := cc.Conversations.Load(c.Request.Context(), session, key)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.Debugf("Loaded %d messages for %s (%s)", len(msgs), key, session.Role)
	utils.RespondJSON(c, http.StatusOK, "Conversation messages", gin.H{
		"key":      key,
		"messages": msgs,
	})
}

// SendMessage runs the send pipeline. A message parked offline is reported
// with 202 so the client keeps showing it.
func (cc *ConversationController) SendMessage(c *gin.Context) {
	session, key, ok := cc.resolve(c)
	if !ok {
		return
	}
	var body sendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := cc.Pipeline.Send(c.Request.Context(), session, key, body.AuthorDisplayName, body.Content, nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if res.Outcome == services.OutcomeOffline {
		utils.RespondJSON(c, http.StatusAccepted, "Message saved offline: "+res.Err.Error(), res)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Message sent", res)
}

func (cc *ConversationController) FlushOffline(c *gin.Context) {
	session, key, ok := cc.resolve(c)
	if !ok {
		return
	}
	res, err := cc.Pipeline.FlushOffline(c.Request.Context(), session, key, nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Offline messages flushed", res)
}

func (cc *ConversationController) resolve(c *gin.Context) (models.Session, models.ConversationKey, bool) {
	session, ok := currentSession(c)
	if !ok {
		return session, models.ConversationKey{}, false
	}
	key, err := cc.Conversations.ResolveKey(c.Request.Context(), session, c.Param("event_id"), c.Query("supplier_email"))
	if err != nil {
		respondServiceError(c, err)
		return session, key, false
	}
	return session, key, true
}
