package controllers

import (
	"errors"
	"net/http"

	"github.com/citada/supplier-portal/middlewares"
	"github.com/citada/supplier-portal/models"
	"github.com/citada/supplier-portal/services"
	"github.com/citada/supplier-portal/utils"
	"github.com/gin-gonic/gin"
)

// currentSession returns the caller's session or answers 401 itself.
func currentSession(c *gin.Context) (models.Session, bool) {
	session, ok := middlewares.GetSession(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return models.Session{}, false
	}
	return session, true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidKey),
		errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrDuplicateMember),
		errors.Is(err, services.ErrInvalidMember):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidSession),
		errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRequestNotPending):
		return http.StatusConflict
	case errors.Is(err, services.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(c *gin.Context, err error) {
	utils.RespondError(c, statusFor(err), err)
}
