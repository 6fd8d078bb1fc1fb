package api

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router gin.IRouter, cvHandler *CVHandler, wsHandler *WsHandler) {
	v1 := router.Group("/v1")
	{
		if wsHandler != nil {
			v1.GET("/ws", wsHandler.HandleConnection)
		}

		cvGroup := v1.Group("/cv")
		{
			cvGroup.POST("", cvHandler.SaveCV)
			cvGroup.POST("/pdf", cvHandler.ExportPDF)
			cvGroup.GET("/:id", cvHandler.GetCV)
			cvGroup.GET("/:id/download-link", cvHandler.GetDownloadLink)
			cvGroup.DELETE("/:id", cvHandler.DeleteCV)
		}
	}
}
