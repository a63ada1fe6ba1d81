package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/npcforge/npcforge/internal/config"
	"github.com/npcforge/npcforge/internal/httpapi/handlers"
	"github.com/npcforge/npcforge/internal/httpapi/middleware"
	"github.com/npcforge/npcforge/internal/logger"
)

func NewRouter(cfg config.Config, log *logger.Logger, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(h.NotFound)
	r.NoMethod(h.MethodNotAllowed)

	if cfg.BlobDriver == "local" {
		r.Static("/storage", cfg.BlobLocalDir)
	}

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/users", h.Register)
	api.POST("/login", h.Login)

	authGroup := api.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	authGroup.POST("/npcs", h.CreateNpc)
	authGroup.GET("/npcs", h.ListNpcs)
	authGroup.GET("/npcs/:id", h.GetNpc)
	authGroup.DELETE("/npcs/:id", h.DeleteNpc)
	authGroup.POST("/npcs/:id/portrait", h.RegenerateNpcPortrait)

	authGroup.GET("/chats", h.ListChats)
	authGroup.POST("/chats", h.CreateChat)
	authGroup.GET("/chats/:id", h.GetChat)
	authGroup.PATCH("/chats/:id", h.UpdateChat)
	authGroup.DELETE("/chats/:id", h.DeleteChat)
	authGroup.GET("/chats/:id/messages", h.ListChatMessages)
	authGroup.POST("/chats/:id/messages", h.SendChatMessage)

	return r
}
