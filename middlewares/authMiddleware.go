package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/gin-gonic/gin"
)

type authString string

const groupHeader = "X-Group-Id"

// AuthMiddleware validates a bearer (or legacy "token" header) JWT and copies
// its claims into the request context. Requests without a token pass through
// anonymously; RequireUser rejects them where identity is needed.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request.Header.Get("Authorization"))
		if token == "" {
			token = c.Request.Header.Get("token")
		}
		if token == "" {
			c.Next()
			return
		}

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "Unauthorized"})
			return
		}
		customClaim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "Unauthorized"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUserIdInContext(ctx, customClaim.UserId)
		ctx = utils.SetUserNameInContext(ctx, customClaim.UserName)
		ctx = utils.SetOrgIdInContext(ctx, customClaim.OrgId)
		ctx = utils.SetYearIdInContext(ctx, customClaim.YearId)
		ctx = utils.SetIsAdminInContext(ctx, customClaim.IsAdmin)

		groupId := customClaim.GroupId
		// admins work on behalf of any group
		if override := strings.TrimSpace(c.GetHeader(groupHeader)); override != "" && customClaim.IsAdmin {
			groupId = override
		}
		ctx = utils.SetGroupIdInContext(ctx, groupId)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// RequireUser rejects requests that carry no authenticated user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok || userId == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireTenant rejects requests without a group id in the context.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if groupId, ok := utils.GetGroupIdFromContext(c.Request.Context()); !ok || groupId == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "group is required", "code": "GroupRequired"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const bearer = "Bearer "
	if len(header) > len(bearer) && strings.EqualFold(header[:len(bearer)], bearer) {
		return strings.TrimSpace(header[len(bearer):])
	}
	return ""
}
