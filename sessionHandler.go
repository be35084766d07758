package main

import (
	"net/http"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/gin-gonic/gin"
)

type sessionInfo struct {
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	GroupId  string `json:"groupId,omitempty"`
	OrgId    string `json:"orgId,omitempty"`
	YearId   string `json:"yearId,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
	HasToken bool   `json:"hasToken"`
}

// sessionHandler echoes the identity resolved by AuthMiddleware,
// including the effective group after an admin X-Group-Id override.
func sessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var info sessionInfo
		info.UserId, _ = utils.GetUserIdFromContext(ctx)
		info.UserName, _ = utils.GetUserNameFromContext(ctx)
		info.GroupId, _ = utils.GetGroupIdFromContext(ctx)
		info.OrgId, _ = utils.GetOrgIdFromContext(ctx)
		info.YearId, _ = utils.GetYearIdFromContext(ctx)
		info.IsAdmin, _ = utils.GetIsAdminFromContext(ctx)
		token, _ := utils.GetTokenFromContext(ctx)
		info.HasToken = token != ""
		c.JSON(http.StatusOK, info)
	}
}
