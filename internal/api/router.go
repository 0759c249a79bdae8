package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(h *Handler, appName string) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": appName,
			"message": "Service is running",
		})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/latest", h.Latest)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/full", h.AnalyticsFull)
		}

		alerts := v1.Group("/alerts")
		{
			alerts.GET("/recent/:n", h.AlertsRecent)
			alerts.GET("/supplier/:id", h.AlertsBySupplier)
		}

		shap := v1.Group("/shap")
		{
			shap.GET("/history", h.ShapHistory)
		}

		test := v1.Group("/test")
		{
			test.POST("/load-sample", h.LoadSample)
		}
	}

	return r
}
