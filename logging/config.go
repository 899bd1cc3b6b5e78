package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig 定义日志轮转参数。
type RotationConfig struct {
	MaxSize    int  `json:"max_size" yaml:"max_size" mapstructure:"max_size"` // MB
	MaxAge     int  `json:"max_age" yaml:"max_age" mapstructure:"max_age"`    // days
	MaxBackups int  `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	LocalTime  bool `json:"local_time" yaml:"local_time" mapstructure:"local_time"`
	Compress   bool `json:"compress" yaml:"compress" mapstructure:"compress"`
}

// Config 日志配置。
type Config struct {
	Level         Level           `json:"level" yaml:"level" mapstructure:"level"`
	Encoding      Encoding        `json:"encoding" yaml:"encoding" mapstructure:"encoding"`
	TimeFormat    string          `json:"time_format" yaml:"time_format" mapstructure:"time_format"`
	EnableStdout  bool            `json:"enable_stdout" yaml:"enable_stdout" mapstructure:"enable_stdout"`
	FilePaths     []string        `json:"file_paths" yaml:"file_paths" mapstructure:"file_paths"`
	Rotation      *RotationConfig `json:"rotation" yaml:"rotation" mapstructure:"rotation"`
	InitialFields map[string]any  `json:"initial_fields" yaml:"initial_fields" mapstructure:"initial_fields"`
	DisableCaller bool            `json:"disable_caller" yaml:"disable_caller" mapstructure:"disable_caller"`
}

// DefaultConfig 返回适合生产环境的默认配置：info 级别、控制台编码、标准输出。
func DefaultConfig() *Config {
	return &Config{
		Level:        InfoLevel,
		Encoding:     ConsoleEncoding,
		EnableStdout: true,
		TimeFormat:   "2006-01-02 15:04:05.000",
		Rotation: &RotationConfig{
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 7,
			Compress:   true,
			LocalTime:  true,
		},
	}
}

// buildWriters 根据配置构建输出。文件输出一律带轮转。
func buildWriters(cfg *Config) []io.Writer {
	writers := make([]io.Writer, 0)

	if cfg.EnableStdout || len(cfg.FilePaths) == 0 {
		writers = append(writers, os.Stdout)
	}

	rotation := cfg.Rotation
	if len(cfg.FilePaths) > 0 && rotation == nil {
		rotation = DefaultConfig().Rotation
	}

	for _, path := range cfg.FilePaths {
		writers = append(writers, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rotation.MaxSize,
			MaxAge:     rotation.MaxAge,
			MaxBackups: rotation.MaxBackups,
			LocalTime:  rotation.LocalTime,
			Compress:   rotation.Compress,
		})
	}

	return writers
}
