package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/life2you_mini/pnlwatch/internal/config"
	"github.com/life2you_mini/pnlwatch/internal/logger"
	"github.com/life2you_mini/pnlwatch/internal/services"
)

var (
	configFile = flag.String("config", "config/config.yaml", "配置文件路径")
	envFile    = flag.String("env", ".env", "环境变量文件路径，不存在时忽略")
)

func main() {
	// 解析命令行参数
	flag.Parse()

	// 初始化日志
	bootLogger, err := initLogger()
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer bootLogger.Sync()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		bootLogger.Warn("读取环境变量文件失败", zap.String("file", *envFile), zap.Error(err))
	}

	// 加载配置
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		bootLogger.Fatal("加载配置失败", zap.Error(err), zap.Bool("configuration_error", errors.Is(err, config.ErrConfiguration)))
	}

	log := bootLogger
	if cfg.System.LogDir != "" {
		fileLogger, err := logger.NewLogger(cfg.System.LogDir, cfg.System.LogLevel, cfg.App.Name)
		if err != nil {
			bootLogger.Fatal("创建日志文件失败", zap.Error(err))
		}
		defer fileLogger.Close()
		log = fileLogger.Logger
	}
	log.Info("加载配置成功",
		zap.String("配置文件", *configFile),
		zap.Bool("testnet", cfg.Exchange.UseTestnet),
		zap.Float64("baseline", cfg.Baseline.AssetValue))

	// 创建上下文，用于处理信号
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置信号处理
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// 创建服务
	service, err := services.NewPnlWatchService(ctx, cfg, log)
	if err != nil {
		log.Fatal("创建服务失败", zap.Error(err))
	}

	// 启动服务
	service.Start()
	log.Info("服务已启动")

	// 等待终止信号
	sig := <-signalChan
	log.Info("接收到信号，准备关闭服务", zap.String("signal", sig.String()))

	// 创建关闭超时上下文，需等待进行中的刷新结束
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	// 停止服务
	if err := service.Stop(shutdownCtx); err != nil {
		log.Error("服务关闭失败", zap.Error(err))
		os.Exit(1)
	}

	log.Info("服务已优雅关闭")
}

// 初始化启动阶段的日志
func initLogger() (*zap.Logger, error) {
	// 使用开发环境配置，输出更易读的格式
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return config.Build()
}
