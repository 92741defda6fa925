package controllers

import (
	"net/http"

	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

type TeamController struct {
	Roster *services.RosterService
}

func NewTeamController(roster *services.RosterService) *TeamController {
	return &TeamController{Roster: roster}
}

type addMemberRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// GetTeam returns manual contacts and system connections separately.
func (tc *TeamController) GetTeam(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	roster, err := tc.Roster.List(c.Request.Context(), session)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Team members", roster)
}

func (tc *TeamController) AddMember(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	var body addMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	member, err := tc.Roster.Add(c.Request.Context(), session, body.Name, body.Email)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Team member added", member)
}

func (tc *TeamController) RemoveMember(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := tc.Roster.Remove(c.Request.Context(), session, id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Team member removed", gin.H{"id": id})
}
