package middleware

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/teamsync-api/internal/auth"
	"github.com/yukikurage/teamsync-api/internal/constants"
	"github.com/yukikurage/teamsync-api/internal/database"
	apierrors "github.com/yukikurage/teamsync-api/internal/errors"
	"github.com/yukikurage/teamsync-api/internal/models"
)

// RequireAuth resolves the request actor. Identity comes from the
// external provider either as a bearer token (validated locally) or as a
// session cookie holding the user ID.
func RequireAuth(validator *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, ok := actorFromBearer(c, validator); ok {
			setActor(c, actor)
			c.Next()
			return
		}

		if actor, ok := actorFromSession(c); ok {
			setActor(c, actor)
			c.Next()
			return
		}

		apierrors.Unauthorized(c, "")
		c.Abort()
	}
}

func actorFromBearer(c *gin.Context, validator *auth.Validator) (models.Actor, bool) {
	if validator == nil {
		return models.Actor{}, false
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return models.Actor{}, false
	}
	claims, err := validator.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return models.Actor{}, false
	}
	return models.Actor{
		ID:     claims.UserID,
		Role:   models.UserRole(claims.Role),
		TeamID: claims.TeamID,
	}, true
}

func actorFromSession(c *gin.Context) (models.Actor, bool) {
	session := sessions.Default(c)
	raw := session.Get(constants.ContextKeyUserID)
	if raw == nil {
		return models.Actor{}, false
	}

	var userID uint64
	switch v := raw.(type) {
	case uint64:
		userID = v
	case uint:
		userID = uint64(v)
	case int:
		if v < 0 {
			return models.Actor{}, false
		}
		userID = uint64(v)
	default:
		return models.Actor{}, false
	}

	var user models.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		return models.Actor{}, false
	}
	if !user.IsActive {
		return models.Actor{}, false
	}

	return models.Actor{
		ID:     user.ID,
		Role:   user.Role,
		TeamID: user.TeamID,
	}, true
}

func setActor(c *gin.Context, actor models.Actor) {
	c.Set(constants.ContextKeyActor, actor)
	c.Set(constants.ContextKeyUserID, actor.ID)
}

// GetActor retrieves the resolved actor from context
func GetActor(c *gin.Context) (models.Actor, bool) {
	raw, exists := c.Get(constants.ContextKeyActor)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := raw.(models.Actor)
	return actor, ok
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	actor, ok := GetActor(c)
	if !ok {
		return 0, false
	}
	return actor.ID, true
}
