package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/health"
)

// Options 管理面依赖，为 nil 的部分不注册对应路由
type Options struct {
	MetricsPath string
	Metrics     http.Handler
	Health      *health.Aggregator
	Gateway     Gateway
	Stream      http.Handler
	Logger      *zap.Logger
}

// Server HTTP 服务封装
type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

// New 创建 Gin 引擎，注册探针、指标与 /api/v1 管理接口
func New(cfg config.HTTPConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))

	if opts.Health != nil {
		health.RegisterHTTPRoutes(r, opts.Health)
	}
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api/v1")
	api.Use(Auth(cfg.Auth, logger))
	if opts.Gateway != nil {
		RegisterDeviceRoutes(api, opts.Gateway, logger)
	}
	if opts.Stream != nil {
		api.GET("/stream", gin.WrapH(opts.Stream))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv, engine: r}
}

// Handler 返回路由，测试直接驱动
func (s *Server) Handler() http.Handler { return s.engine }

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.ClientIP()),
		)
	}
}
