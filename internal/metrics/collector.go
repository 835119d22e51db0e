package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Recorder 指标接收器接口
// 管线与作业层在构造时注入该接口，生命周期由进程入口管理。
type Recorder interface {
	// PipelineRun 记录一次管线执行：路由、错误码（可为空）与总耗时
	PipelineRun(route string, errorCode string, duration time.Duration)
	// StageDuration 记录单个阶段耗时
	StageDuration(stage string, duration time.Duration)
	// DocsRetrieved 记录一次检索产出的候选文档数
	DocsRetrieved(source string, count int)
	// JobFinished 记录作业终态
	JobFinished(status string)
	// EventPushed 记录入队的流事件
	EventPushed(eventType string)
}

// =============================================================================
// 📊 Prometheus 收集器
// =============================================================================

// Collector Prometheus 指标收集器
type Collector struct {
	pipelineRuns   *prometheus.CounterVec
	pipelineDur    *prometheus.HistogramVec
	stageDur       *prometheus.HistogramVec
	docsRetrieved  *prometheus.CounterVec
	jobsFinished   *prometheus.CounterVec
	eventsPushed   *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.pipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline executions by route and error code",
		},
		[]string{"route", "error_code"},
	)
	c.pipelineDur = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline execution duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	c.stageDur = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Per-stage execution duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	c.docsRetrieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_retrieved_total",
			Help:      "Candidate documents produced by retrieval, by source strategy",
		},
		[]string{"source"},
	)
	c.jobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs reaching a terminal status",
		},
		[]string{"status"},
	)
	c.eventsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_pushed_total",
			Help:      "Stream events appended to the event queue, by type",
		},
		[]string{"type"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// PipelineRun 记录一次管线执行
func (c *Collector) PipelineRun(route string, errorCode string, duration time.Duration) {
	if errorCode == "" {
		errorCode = "none"
	}
	c.pipelineRuns.WithLabelValues(route, errorCode).Inc()
	c.pipelineDur.WithLabelValues(route).Observe(duration.Seconds())
}

// StageDuration 记录阶段耗时
func (c *Collector) StageDuration(stage string, duration time.Duration) {
	c.stageDur.WithLabelValues(stage).Observe(duration.Seconds())
}

// DocsRetrieved 记录检索文档数
func (c *Collector) DocsRetrieved(source string, count int) {
	c.docsRetrieved.WithLabelValues(source).Add(float64(count))
}

// JobFinished 记录作业终态
func (c *Collector) JobFinished(status string) {
	c.jobsFinished.WithLabelValues(status).Inc()
}

// EventPushed 记录流事件入队
func (c *Collector) EventPushed(eventType string) {
	c.eventsPushed.WithLabelValues(eventType).Inc()
}

// =============================================================================
// 🚫 Nop 实现（测试与未接线场景）
// =============================================================================

// Nop 返回一个什么都不做的 Recorder。
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) PipelineRun(string, string, time.Duration) {}
func (nopRecorder) StageDuration(string, time.Duration)       {}
func (nopRecorder) DocsRetrieved(string, int)                 {}
func (nopRecorder) JobFinished(string)                        {}
func (nopRecorder) EventPushed(string)                        {}
