package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/npcforge/npcforge/internal/chat"
	"github.com/npcforge/npcforge/internal/common"
	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/logger"
	"github.com/npcforge/npcforge/internal/npc"
	"github.com/npcforge/npcforge/internal/store/redisstore"
	"github.com/npcforge/npcforge/internal/users"
)

type Handler struct {
	Cfg config.Config
	Log *logger.Logger

	Users   *users.Repo
	NpcSvc  *npc.Service
	NpcRepo *npc.Repo
	ChatSvc *chat.Service

	// Portraits backs the manual regenerate trigger with the same strategy
	// used on creation.
	Portraits npc.PortraitDispatcher

	// Limiter is optional; when nil, generation is not rate limited.
	Limiter *redisstore.Store
}

func NewHandler(
	cfg config.Config,
	log *logger.Logger,
	userRepo *users.Repo,
	npcSvc *npc.Service,
	npcRepo *npc.Repo,
	chatSvc *chat.Service,
	portraits npc.PortraitDispatcher,
	limiter *redisstore.Store,
) *Handler {
	return &Handler{
		Cfg:       cfg,
		Log:       log,
		Users:     userRepo,
		NpcSvc:    npcSvc,
		NpcRepo:   npcRepo,
		ChatSvc:   chatSvc,
		Portraits: portraits,
		Limiter:   limiter,
	}
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) NotFound(c *gin.Context) {
	common.Fail(c, http.StatusNotFound, 40400, "route not found")
}

func (h *Handler) MethodNotAllowed(c *gin.Context) {
	common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
}
