package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/middleware"
	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
	"github.com/noah-isme/studio-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// requireClaims writes an AUTH_REQUIRED response when the request carries no claims.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrAuthRequired)
		return nil, false
	}
	return claims, true
}

func bindError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
