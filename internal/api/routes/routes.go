package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yooventa/tubetalk/internal/api/handlers"
)

type Deps struct {
	Thread *handlers.ThreadHandler
	Chat   *handlers.ChatHandler
	Video  *handlers.VideoHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/threads", d.Thread.Create)
	r.GET("/threads", d.Thread.List)
	r.GET("/threads/:thread_id", d.Thread.Get)
	r.DELETE("/threads/:thread_id", d.Thread.Delete)

	r.GET("/threads/:thread_id/messages", d.Thread.Messages)
	r.POST("/threads/:thread_id/messages", d.Chat.Send)

	r.GET("/videos/:video_id", d.Video.Get)
}
