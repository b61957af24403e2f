package utils

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器
var Logger zerolog.Logger

// maskEmails 日志中是否隐藏邮箱,InitLogger时设置
var maskEmails atomic.Bool

func init() {
	maskEmails.Store(true)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string // trace, debug, info, warn, error
	LogDir     string
	MaxSize    int  // 单个文件最大MB
	MaxBackups int  // 保留的旧文件数
	MaxAge     int  // 保留天数
	Compress   bool // 压缩旧文件
	FileName   string
	NoColor    bool // 控制台关闭颜色
	Quiet      bool // 只写文件
	// MaskEmails 日志里只保留邮箱前两个字符和域名,结果和报告不受影响
	MaskEmails bool
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		FileName:   "emailfinder",
		MaskEmails: true,
	}
}

func (c LogConfig) rotatingFile(suffix string) *lumberjack.Logger {
	name := c.FileName
	if name == "" {
		name = "emailfinder"
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, name+suffix+".log"),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// InitLogger 初始化全局日志
//
// 输出: <name>.log 记录全部级别,<name>_error.log 只记录error及以上,
// 控制台输出到stderr,stdout留给find --json等结果输出。
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	maskEmails.Store(config.MaskEmails)

	writers := []io.Writer{
		config.rotatingFile(""),
		&FilteredWriter{Writer: config.rotatingFile("_error"), MinLevel: zerolog.ErrorLevel},
	}
	if !config.Quiet {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    config.NoColor,
		})
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger()
	log.Logger = Logger

	Logger.Info().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Bool("mask_emails", config.MaskEmails).
		Msg("日志系统初始化完成")
	return nil
}

// Component 带component字段的子日志器
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// EmailForLog 按配置决定日志中邮箱是否脱敏
func EmailForLog(email string) string {
	if maskEmails.Load() {
		return MaskEmail(email)
	}
	return email
}

// FilteredWriter 只写入MinLevel及以上级别的日志
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 不带级别的写入无法判断级别,直接丢弃
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel MultiLevelWriter会带着级别调用
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

func Error(err error, msg string) {
	Logger.Error().Err(err).Msg(msg)
}

func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}

// Fatal 记录后退出进程
func Fatal(err error, msg string) {
	Logger.Fatal().Err(err).Msg(msg)
}
