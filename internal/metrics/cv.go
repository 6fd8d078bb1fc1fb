package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结果标签取值。
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultInvalid = "invalid"
	ResultLimited = "rate_limited"
	ResultOK      = "ok"
	ResultError   = "error"
)

var (
	cvSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvbuilder",
			Subsystem: "cv",
			Name:      "saves_total",
			Help:      "简历保存请求数，按结果分类。",
		},
		[]string{"result"},
	)

	cvExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvbuilder",
			Subsystem: "cv",
			Name:      "exports_total",
			Help:      "同步 PDF 导出请求数，按结果分类。",
		},
		[]string{"result"},
	)

	pdfRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cvbuilder",
			Subsystem: "pdf",
			Name:      "render_duration_seconds",
			Help:      "浏览器渲染 PDF 的耗时（秒）。",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"source"},
	)
)

func ObserveSave(result string) {
	cvSavesTotal.WithLabelValues(result).Inc()
}

func ObserveExport(result string) {
	cvExportsTotal.WithLabelValues(result).Inc()
}

// ObserveRender 记录一次渲染耗时，source 为 api（同步导出）或 worker（异步任务）。
func ObserveRender(source string, started time.Time) {
	pdfRenderDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}
