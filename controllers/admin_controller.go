package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/config"
	"github.com/driftline/driftline/middleware"
	"github.com/driftline/driftline/services"
	"github.com/driftline/driftline/utils"
)

// AdminController triggers the reconciliation job. Reconciliation runs off
// the request path by design; these endpoints are the on-demand trigger.
type AdminController struct {
	reconciler *services.Reconciler
}

func NewAdminController(reconciler *services.Reconciler) *AdminController {
	return &AdminController{reconciler: reconciler}
}

// AdminRequired allows only usernames listed in the configuration.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username := middleware.Username(ctx)
		for _, admin := range config.Get().AdminUsernames {
			if username != "" && username == admin {
				ctx.Next()
				return
			}
		}
		utils.Error(ctx, http.StatusForbidden, 40310, "admin access required")
		ctx.Abort()
	}
}

// ReconcileAll recomputes every community's member count from the membership
// documents and reports each correction.
func (a *AdminController) ReconcileAll(ctx *gin.Context) {
	summary, err := a.reconciler.ReconcileAll(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "reconciliation failed")
		return
	}

	for _, report := range summary.Reports {
		if report.Changed {
			utils.InvalidateCommunity(report.CommunityID)
		}
	}
	utils.Success(ctx, summary)
}

// ReconcileOne corrects a single community's member count.
func (a *AdminController) ReconcileOne(ctx *gin.Context) {
	communityID := ctx.Param("id")
	report, err := a.reconciler.ReconcileOne(ctx.Request.Context(), communityID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "community not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "reconciliation failed")
		return
	}

	if report.Changed {
		utils.InvalidateCommunity(communityID)
	}
	utils.Success(ctx, report)
}
