package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	coursedomain "github.com/smallbiznis/entitlement/internal/course/domain"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
)

type snapshotResponse struct {
	Users         []userdomain.User                 `json:"users"`
	Subscriptions []subscriptiondomain.Subscription `json:"subscriptions"`
	Purchases     []purchasedomain.Purchase         `json:"purchases"`
	Courses       []coursedomain.Course             `json:"courses"`
}

// DebugSnapshot dumps every entitlement table. It does not exist in
// production.
func (s *Server) DebugSnapshot(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	ctx := c.Request.Context()
	var (
		resp snapshotResponse
		err  error
	)
	if resp.Users, err = s.users.List(ctx, s.db); err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.Subscriptions, err = s.subscriptions.List(ctx, s.db); err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.Purchases, err = s.purchases.List(ctx, s.db); err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.Courses, err = s.courses.List(ctx, s.db); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
