package models

import (
	"context"

	"bitbucket.org/ovenworks/bakehouse_backend/config"
	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/google/uuid"
)

// Actor is the user-attributable identity attached to every audit row.
// It is assembled from the request context by the auth/session middlewares.
type Actor struct {
	UserId    int
	UserEmail string
	UserName  string
	IpAddress string
	UserAgent string
}

func ActorFromContext(ctx context.Context) Actor {
	var a Actor
	if ctx == nil {
		return a
	}
	if v, ok := utils.GetUserIdFromContext(ctx); ok {
		a.UserId = v
	}
	if v, ok := utils.GetUserEmailFromContext(ctx); ok {
		a.UserEmail = v
	}
	if v, ok := utils.GetUserNameFromContext(ctx); ok {
		a.UserName = v
	}
	if v, ok := utils.GetIpAddressFromContext(ctx); ok {
		a.IpAddress = v
	}
	if v, ok := utils.GetUserAgentFromContext(ctx); ok {
		a.UserAgent = v
	}
	return a
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// Pagination is the shared limit/offset input for list queries.
type Pagination struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

const maxPageSize = 200

func (p Pagination) normalized() (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = config.SearchLimit * 5
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Page wraps a list result with its total count for offset pagination.
type Page[T any] struct {
	Total int64 `json:"total"`
	Rows  []*T  `json:"rows"`
}
