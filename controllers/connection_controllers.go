package controllers

import (
	"net/http"

	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

type ConnectionController struct {
	Connections *services.ConnectionService
}

func NewConnectionController(connections *services.ConnectionService) *ConnectionController {
	return &ConnectionController{Connections: connections}
}

func (cc *ConnectionController) AcceptRequest(c *gin.Context) {
	cc.respond(c, true)
}

func (cc *ConnectionController) DeclineRequest(c *gin.Context) {
	cc.respond(c, false)
}

func (cc *ConnectionController) respond(c *gin.Context, accept bool) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	req, err := cc.Connections.Respond(c.Request.Context(), session, c.Param("id"), accept)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Connection request "+req.Status, req)
}
