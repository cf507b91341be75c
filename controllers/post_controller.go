package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/middleware"
	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/services"
	"github.com/driftline/driftline/store"
	"github.com/driftline/driftline/utils"
)

// PostController exposes the post feeds, post creation and voting.
type PostController struct {
	posts       *repository.PostRepository
	communities *repository.CommunityRepository
	users       *repository.UserRepository
	votes       *services.VoteService
}

func NewPostController(
	posts *repository.PostRepository,
	communities *repository.CommunityRepository,
	users *repository.UserRepository,
	votes *services.VoteService,
) *PostController {
	return &PostController{posts: posts, communities: communities, users: users, votes: votes}
}

// feedItem is one feed entry with its references expanded. Either expansion
// may be nil when the referenced document no longer resolves.
type feedItem struct {
	Post      models.Post       `json:"post"`
	Community *models.Community `json:"community,omitempty"`
	Author    *models.User      `json:"author,omitempty"`
}

// expandFeed resolves community and author references, memoizing lookups
// across the page.
func (p *PostController) expandFeed(ctx *gin.Context, posts []models.Post) []feedItem {
	communities := map[string]*models.Community{}
	authors := map[string]*models.User{}
	items := make([]feedItem, 0, len(posts))
	for _, post := range posts {
		item := feedItem{Post: post}
		if ref := post.Community.Ref; ref != "" {
			if _, seen := communities[ref]; !seen {
				c, err := p.communities.Get(ctx.Request.Context(), ref)
				if err != nil {
					c = nil
				}
				communities[ref] = c
			}
			item.Community = communities[ref]
		}
		if ref := post.Author.Ref; ref != "" {
			if _, seen := authors[ref]; !seen {
				u, err := p.users.Get(ctx.Request.Context(), ref)
				if err != nil {
					u = nil
				}
				authors[ref] = u
			}
			item.Author = authors[ref]
		}
		items = append(items, item)
	}
	return items
}

// ListPosts returns a feed. sort=new|hot|top, optional community filter,
// paginated. Pages are cached per sort and community.
func (p *PostController) ListPosts(ctx *gin.Context) {
	sort := ctx.DefaultQuery("sort", repository.SortNew)
	if sort != repository.SortNew && sort != repository.SortHot && sort != repository.SortTop {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid sort")
		return
	}
	communityID := strings.TrimSpace(ctx.Query("community"))
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	cacheKey := fmt.Sprintf("%ssort=%s:community=%s:page=%d:size=%d",
		utils.PostListPrefix, sort, communityID, page, pageSize)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	posts, err := p.posts.List(ctx.Request.Context(), repository.ListOptions{
		Sort:        sort,
		CommunityID: communityID,
		Limit:       pageSize,
		Offset:      (page - 1) * pageSize,
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to list posts")
		return
	}

	payload := gin.H{
		"items": p.expandFeed(ctx, posts),
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
		},
	}
	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 5*time.Minute)
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its cached vote aggregates.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.posts.Get(ctx.Request.Context(), ctx.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40430, "post not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load post")
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

// CreatePost publishes a post into a community.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		CommunityID string `json:"community_id" binding:"required"`
		Title       string `json:"title" binding:"required,min=1"`
		Body        string `json:"body"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}

	title := utils.Sanitize(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40032, "title cannot be empty")
		return
	}
	body := utils.Sanitize(req.Body)

	post, err := p.posts.Create(ctx.Request.Context(), middleware.UserID(ctx), req.CommunityID, title, body)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to create post")
		return
	}

	utils.InvalidateByPrefix(utils.PostListPrefix)
	utils.Success(ctx, gin.H{"post": post})
}

// Vote casts, switches or retracts the caller's vote on a post and returns
// the post with freshly recomputed aggregates.
func (p *PostController) Vote(ctx *gin.Context) {
	var req struct {
		VoteType string `json:"vote_type" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid request payload")
		return
	}

	post, err := p.votes.Cast(ctx.Request.Context(), middleware.UserID(ctx), ctx.Param("id"), req.VoteType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			utils.Error(ctx, http.StatusUnauthorized, 40130, err.Error())
		case errors.Is(err, services.ErrInvalidVote):
			utils.Error(ctx, http.StatusBadRequest, 40034, err.Error())
		case errors.Is(err, services.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40431, "post not found")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to record vote")
		}
		return
	}

	utils.InvalidateByPrefix(utils.PostListPrefix)
	utils.Success(ctx, gin.H{"post": post})
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page, _ := strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(sizeStr)
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
