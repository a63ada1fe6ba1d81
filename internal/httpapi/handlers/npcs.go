package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/npcforge/npcforge/internal/common"
	"github.com/npcforge/npcforge/internal/httpapi/middleware"
	"github.com/npcforge/npcforge/internal/npc"
)

type createNpcReq struct {
	Prompt string `json:"prompt"`
}

type npcResponse struct {
	*npc.Npc
	// Free-text appearance description from the generation payload. Returned
	// once, never persisted.
	AppearanceDesc string `json:"appearance_desc"`
}

func (h *Handler) CreateNpc(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createNpcReq
	// An empty body selects random mode.
	_ = c.ShouldBindJSON(&req)

	if h.Limiter != nil {
		allowed, err := h.Limiter.AllowGenerate(c.Request.Context(), uid,
			h.Cfg.GenerateRateLimit, time.Duration(h.Cfg.GenerateRateWindow)*time.Second)
		if err != nil {
			h.Log.Error("rate limit check failed", "user_id", uid, "error", err)
			common.Fail(c, http.StatusInternalServerError, 20010, "rate limit check failed")
			return
		}
		if !allowed {
			common.Fail(c, http.StatusTooManyRequests, 42901, "too many generation requests, slow down")
			return
		}
	}

	result, err := h.NpcSvc.Generate(c.Request.Context(), uid, req.Prompt)
	if err != nil {
		var genErr *npc.GenerationError
		if errors.As(err, &genErr) {
			common.FailWithErrors(c, http.StatusUnprocessableEntity, 42201,
				genErr.Error(), genErr.Diagnostics)
			return
		}
		h.Log.Error("npc generation failed", "user_id", uid, "error", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.Created(c, npcResponse{Npc: result.Npc, AppearanceDesc: result.AppearanceDesc})
}

func (h *Handler) ListNpcs(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	npcs, err := h.NpcRepo.ListByOwner(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, npcs)
}

func (h *Handler) GetNpc(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	n, err := h.NpcRepo.FindByIDForOwner(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "npc not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, n)
}

func (h *Handler) DeleteNpc(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.NpcRepo.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "npc not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"success": true})
}

// RegenerateNpcPortrait re-enters the portrait pipeline for an NPC whose
// portrait is missing or failed. A no-op when a portrait already exists.
func (h *Handler) RegenerateNpcPortrait(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Param("id")
	if _, err := h.NpcRepo.FindByIDForOwner(c.Request.Context(), uid, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "npc not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	h.Portraits.Dispatch(c.Request.Context(), id)

	n, err := h.NpcRepo.FindByIDForOwner(c.Request.Context(), uid, id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, n)
}
