package server

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc, adminMiddleware echo.MiddlewareFunc, sendLimiter echo.MiddlewareFunc) {
	e := s.Echo
	api := e.Group("/api/v1")
	// Auth routes (unprotected)
	auth := api.Group("/auth")
	{
		auth.POST("/login", s.AuthHandler.Login)
		auth.POST("/refresh", s.AuthHandler.RefreshToken)
	}
	// 需要认证
	protected := api.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/agent", s.AuthHandler.GetCurrentAgent)
		// 工作台路由
		desk := protected.Group("/desk")
		{
			desk.GET("/sessions", s.DeskHandler.ListSessions)                                  // 会话目录（q=搜索词）
			desk.POST("/sessions/:sessionId/assign", s.DeskHandler.AssignSession)              // 指派给当前坐席
			desk.POST("/sessions/:sessionId/close", s.DeskHandler.CloseSession)                // 关闭会话
			desk.GET("/sessions/:sessionId/messages", s.DeskHandler.GetMessages)               // 打开消息流
			desk.POST("/sessions/:sessionId/messages", s.DeskHandler.SendMessage, sendLimiter) // 发送消息（限流）
			desk.PUT("/messages/read", s.DeskHandler.MarkRead)                                 // 批量已读
		}
		protected.GET("/desk/ws", s.ConsoleHandler.HandleWebSocket)
		// 管理员路由
		admin := protected.Group("/admin")
		admin.Use(adminMiddleware)
		admin.POST("/agents", s.AuthHandler.RegisterAgent) // 创建坐席
	}
}
