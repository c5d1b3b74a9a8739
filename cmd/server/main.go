package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/app/bootstrap"
	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/logging"
)

func main() {
	// 1) 加载配置，路径取自第一个参数或 H02_CONFIG
	var path string
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动并阻塞到收到关闭信号
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
