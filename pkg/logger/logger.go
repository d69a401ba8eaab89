package logger

import (
	"go.uber.org/zap"
)

// New 创建进程级日志器
// mode 为 "release" 时输出 JSON 生产格式，否则用开发格式方便本地排查
func New(mode string) (*zap.Logger, error) {
	if mode == "release" {
		return zap.NewProduction()
	}
	cfg := zap.NewDevelopmentConfig()
	return cfg.Build()
}
