package api

import (
	"Clubline/internal/api/middleware"
	"Clubline/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		// 推送长连接走 query token 鉴权，不挂审计中间件
		apiGroup.GET("/ws", group.WsHandler.Connect)

		convGroup := apiGroup.Group("/conversations")
		convGroup.Use(middleware.AuthMiddleware())
		{
			convGroup.POST("", group.ConversationHandler.CreateConversation)
			convGroup.POST("/direct", group.ConversationHandler.GetDirectConversation)
			convGroup.GET("/list", group.ConversationHandler.GetConversationList)
			convGroup.PUT("/group", group.ConversationHandler.UpdateGroupInfo)
			convGroup.POST("/group/member", group.ConversationHandler.AddGroupMember)
			convGroup.DELETE("/group/member", group.ConversationHandler.RemoveGroupMember)
			convGroup.PUT("/settings", group.ConversationHandler.UpdateSettings)
		}

		imGroup := apiGroup.Group("/im")
		imGroup.Use(middleware.AuthMiddleware())
		{
			imGroup.POST("/message", group.IMHandler.SendMessage)
			imGroup.PUT("/message", group.IMHandler.EditMessage)
			imGroup.DELETE("/message", group.IMHandler.DeleteMessage)
			imGroup.POST("/message/reaction", group.IMHandler.ReactMessage)
			imGroup.POST("/message/forward", group.IMHandler.ForwardMessage)
			imGroup.POST("/read", group.IMHandler.MarkAsRead)
			imGroup.POST("/typing", group.IMHandler.SetTyping)
			imGroup.GET("/history", group.IMHandler.GetChatHistory)
		}

		mediaGroup := apiGroup.Group("/media")
		mediaGroup.Use(middleware.AuthMiddleware())
		{
			mediaGroup.POST("/upload", group.MediaHandler.Upload)
		}
	}

	return r
}
