package utils

import (
	"context"

	"bitbucket.org/auditdesk/audit_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyGroupId       = appctx.ContextKeyGroupId
	ContextKeyOrgId         = appctx.ContextKeyOrgId
	ContextKeyYearId        = appctx.ContextKeyYearId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeyIsAdmin         = appctx.ContextKeyIsAdmin
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetGroupIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyGroupId)
}

func GetOrgIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOrgId)
}

func GetYearIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyYearId)
}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetGroupIdInContext(ctx context.Context, groupId string) context.Context {
	return appctx.Set(ctx, ContextKeyGroupId, groupId)
}

func SetOrgIdInContext(ctx context.Context, orgId string) context.Context {
	return appctx.Set(ctx, ContextKeyOrgId, orgId)
}

func SetYearIdInContext(ctx context.Context, yearId string) context.Context {
	return appctx.Set(ctx, ContextKeyYearId, yearId)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}
