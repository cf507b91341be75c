package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/middleware"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/services"
	"github.com/driftline/driftline/store"
	"github.com/driftline/driftline/utils"
)

// CommunityController exposes community browsing and the membership actions.
type CommunityController struct {
	communities *repository.CommunityRepository
	memberships *services.MembershipService
}

func NewCommunityController(communities *repository.CommunityRepository, memberships *services.MembershipService) *CommunityController {
	return &CommunityController{communities: communities, memberships: memberships}
}

// ListCommunities returns all communities, newest first. The response is
// served from the redis view cache when possible; the cache is invalidated
// by membership changes and reconciliation, never written to directly with
// computed counts.
func (c *CommunityController) ListCommunities(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(utils.CommunityListKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	communities, err := c.communities.List(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to list communities")
		return
	}

	payload := gin.H{"items": communities}
	utils.CacheSetJSON(utils.CommunityListKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 10*time.Minute)
	utils.Success(ctx, payload)
}

// GetCommunity returns one community with its cached member count.
func (c *CommunityController) GetCommunity(ctx *gin.Context) {
	id := ctx.Param("id")
	if b, ok := utils.CacheGetBytes(utils.CommunityKey(id)); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	community, err := c.communities.Get(ctx.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40410, "community not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load community")
		return
	}

	payload := gin.H{"community": community, "member_count": community.Members()}
	utils.CacheSetJSON(utils.CommunityKey(id), utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 10*time.Minute)
	utils.Success(ctx, payload)
}

// ListMembers returns a community's members with expanded users.
func (c *CommunityController) ListMembers(ctx *gin.Context) {
	id := ctx.Param("id")
	if b, ok := utils.CacheGetBytes(utils.CommunityMembersKey(id)); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	members, err := c.memberships.ListMembers(ctx.Request.Context(), id)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to list members")
		return
	}

	payload := gin.H{"items": members}
	utils.CacheSetJSON(utils.CommunityMembersKey(id), utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 10*time.Minute)
	utils.Success(ctx, payload)
}

// Join adds the caller to the community.
func (c *CommunityController) Join(ctx *gin.Context) {
	communityID := ctx.Param("id")
	membership, err := c.memberships.Join(ctx.Request.Context(), middleware.UserID(ctx), communityID)
	if err != nil {
		respondMembershipError(ctx, err)
		return
	}

	utils.InvalidateCommunity(communityID)
	utils.Success(ctx, gin.H{"membership": membership})
}

// Leave removes the caller from the community.
func (c *CommunityController) Leave(ctx *gin.Context) {
	communityID := ctx.Param("id")
	if err := c.memberships.Leave(ctx.Request.Context(), middleware.UserID(ctx), communityID); err != nil {
		respondMembershipError(ctx, err)
		return
	}

	utils.InvalidateCommunity(communityID)
	utils.Success(ctx, gin.H{"left": true})
}

// MembershipStatus reports whether the caller belongs to the community.
// Anonymous callers and lookup failures both read as false.
func (c *CommunityController) MembershipStatus(ctx *gin.Context) {
	isMember := c.memberships.IsMember(ctx.Request.Context(), middleware.UserID(ctx), ctx.Param("id"))
	utils.Success(ctx, gin.H{"is_member": isMember})
}

// MyCommunities lists the communities the caller has joined.
func (c *CommunityController) MyCommunities(ctx *gin.Context) {
	communities, err := c.memberships.JoinedCommunities(ctx.Request.Context(), middleware.UserID(ctx))
	if err != nil {
		respondMembershipError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": communities})
}

func respondMembershipError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		utils.Error(ctx, http.StatusConflict, 40910, err.Error())
	case errors.Is(err, services.ErrNotMember):
		utils.Error(ctx, http.StatusConflict, 40911, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40411, "not found")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50013, "operation failed")
	}
}
