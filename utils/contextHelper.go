package utils

import (
	"context"

	"bitbucket.org/ovenworks/bakehouse_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserEmail     = appctx.ContextKeyUserEmail
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyIpAddress     = appctx.ContextKeyIpAddress
	ContextKeyUserAgent     = appctx.ContextKeyUserAgent
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyIsAdmin       = appctx.ContextKeyIsAdmin
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserEmail)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetIpAddressFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyIpAddress)
}

func GetUserAgentFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserAgent)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserEmailInContext(ctx context.Context, email string) context.Context {
	return appctx.Set(ctx, ContextKeyUserEmail, email)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetIpAddressInContext(ctx context.Context, ip string) context.Context {
	return appctx.Set(ctx, ContextKeyIpAddress, ip)
}

func SetUserAgentInContext(ctx context.Context, userAgent string) context.Context {
	return appctx.Set(ctx, ContextKeyUserAgent, userAgent)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}
