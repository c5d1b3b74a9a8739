package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/app"
	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/events"
)

const shutdownTimeout = 10 * time.Second

// Run 统一启动流程：依赖就绪后才开始接受设备连接，收到信号后按相反顺序关闭
func Run(cfg *config.Config, log *zap.Logger) error {
	instance := cfg.InstanceID()
	log.Info("starting h02 server", zap.String("instance", instance), zap.String("env", cfg.App.Env))

	// ========== 阶段1: 指标与外部依赖 ==========
	reg, appm := app.NewMetrics()

	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	nb, err := app.NewNATS(cfg.NATS, log)
	if err != nil {
		log.Error("nats initialization failed", zap.Error(err))
		return err
	}
	if nb != nil {
		defer nb.Close()
	}

	// ========== 阶段2: 事件分发 ==========
	// 流与 webhook worker 晚于 TCP、HTTP 退出
	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	stream := events.NewStream(log)
	go stream.Run(streamCtx)

	dispatcher := events.NewDispatcher(log, appm, events.NewLogSink(log), stream)
	if nb != nil {
		dispatcher.Add(nb.Sink)
	}
	if hook := app.StartWebhook(streamCtx, cfg.Webhook, log); hook != nil {
		dispatcher.Add(hook)
	}

	// ========== 阶段3: 网关与下行指令 ==========
	uplink, downlink := app.NewIdentityResolvers(redisClient, cfg.Redis)
	gw, _ := app.NewGateway(cfg, instance, uplink, downlink, dispatcher, appm, log)

	var sub *events.CommandSubscriber
	if nb != nil && cfg.NATS.DownlinkSubject != "" {
		sub, err = nb.StartCommandSubscriber(cfg.NATS.DownlinkSubject, gw, log)
		if err != nil {
			log.Error("nats command subscriber failed", zap.Error(err))
			return err
		}
	}

	// ========== 阶段4: TCP 与 HTTP ==========
	tcpSrv := app.NewTCPServer(cfg.TCP, gw, appm, log)
	agg := app.NewHealthAggregator(tcpSrv, redisClient, nb)
	httpSrv := app.NewHTTPServer(cfg, reg, agg, gw, stream, log)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	if err := tcpSrv.Start(); err != nil {
		log.Error("tcp server start failed", zap.Error(err))
		return err
	}
	listen := tcpSrv.Addr().String()
	gw.Started(context.Background(), listen)
	log.Info("all services ready, waiting for devices", zap.String("tcp_addr", listen))

	// ========== 阶段5: 等待关闭信号 ==========
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("received shutdown signal, gracefully shutting down...", zap.String("signal", sig.String()))
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sub != nil {
		if err := sub.Stop(); err != nil {
			log.Warn("nats command subscriber stop failed", zap.Error(err))
		}
	}

	if err := tcpSrv.Shutdown(ctx); err != nil {
		log.Warn("tcp server shutdown error", zap.Error(err))
	}
	log.Info("tcp server stopped")

	gw.Shutdown(ctx)

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}
	log.Info("http server stopped")

	log.Info("shutdown complete")
	return nil
}
