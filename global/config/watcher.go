package config

import (
	"PPSocial/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch 监听配置文件变化；新配置通过校验后替换 Current 并回调 onChange。
// 只有日志级别这类运行期可变的项会被调用方真正应用。
func Watch(path string, onChange func(*Config)) {
	if path == "" {
		return
	}
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		logger.Warn("config watch disabled", zap.String("path", path), zap.Error(err))
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		setCurrent(cfg)
		logger.Info("config reloaded", zap.String("file", e.Name))
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
