// Package metrics 定义服务暴露的 Prometheus 指标。
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AIRequests 按功能和结果统计 AI 网关调用。
	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studymind_ai_requests_total",
		Help: "AI gateway calls by feature and status",
	}, []string{"feature", "status"})

	// PersistenceFailures 统计被吞掉的后台写入失败。
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studymind_persistence_failures_total",
		Help: "Best-effort persistence writes that failed, by feature",
	}, []string{"feature"})

	MaterialsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studymind_materials_processed_total",
		Help: "Materials run through the processing pipeline, by resulting status",
	}, []string{"status"})

	XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studymind_xp_awarded_total",
		Help: "XP points awarded, by source",
	}, []string{"source"})
)

// Handler 返回 /metrics 的 gin 处理函数。
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
