package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/npcforge/npcforge/internal/chat"
	"github.com/npcforge/npcforge/internal/common"
	"github.com/npcforge/npcforge/internal/httpapi/middleware"
)

type createChatReq struct {
	NpcID string  `json:"npc_id" binding:"required"`
	Title *string `json:"title"`
}

type updateChatReq struct {
	Title *string `json:"title"`
}

type sendMessageReq struct {
	Message string `json:"message"`
}

func (h *Handler) ListChats(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	views, err := h.ChatSvc.ListChats(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, views)
}

func (h *Handler) CreateChat(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "npc_id is required")
		return
	}

	created, err := h.ChatSvc.CreateChat(c.Request.Context(), uid, req.NpcID, req.Title)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "npc not found")
			return
		}
		h.Log.Error("chat creation failed", "user_id", uid, "npc_id", req.NpcID, "error", err)
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.Created(c, created)
}

func (h *Handler) GetChat(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	view, err := h.ChatSvc.GetChat(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, view)
}

func (h *Handler) UpdateChat(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	updated, err := h.ChatSvc.UpdateTitle(c.Request.Context(), uid, c.Param("id"), req.Title)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, updated)
}

func (h *Handler) DeleteChat(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.ChatSvc.DeleteChat(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"success": true})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	view, messages, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"chat": view, "messages": messages})
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	turn, err := h.ChatSvc.SendTurn(c.Request.Context(), uid, c.Param("id"), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 40002, "message must not be empty")
		case errors.Is(err, chat.ErrNpcGone):
			common.Fail(c, http.StatusNotFound, 40402, "npc no longer exists")
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40403, "chat not found")
		default:
			h.Log.Error("chat turn failed", "user_id", uid, "chat_id", c.Param("id"), "error", err)
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		}
		return
	}
	common.OK(c, turn)
}
