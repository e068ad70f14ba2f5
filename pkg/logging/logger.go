package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone
)

// ParseLevel 将配置中的级别名称转换为 LogLevel，未知名称返回 Warn
func ParseLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "error":
		return LogLevelError
	case "none", "off":
		return LogLevelNone
	default:
		return LogLevelWarn
	}
}

// Logger 结构化日志记录器，底层使用 charmbracelet/log
type Logger struct {
	mu      sync.RWMutex
	level   LogLevel
	logger  *log.Logger
	enabled bool
}

var (
	defaultLogger *Logger
	loggerOnce    sync.Once
)

// GetLogger 获取默认日志记录器（单例）
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		defaultLogger = NewLogger(LogLevelWarn, os.Stderr, "gopdfsign")
	})
	return defaultLogger
}

// NewLogger 创建新的日志记录器
func NewLogger(level LogLevel, output io.Writer, prefix string) *Logger {
	l := log.NewWithOptions(output, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           log.DebugLevel,
	})
	return &Logger{
		level:   level,
		logger:  l,
		enabled: true,
	}
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetEnabled 启用或禁用日志
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetOutput 重定向日志输出
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

// Debug 记录调试信息
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.allowed(LogLevelDebug) {
		l.logger.Debugf(format, v...)
	}
}

// Info 记录信息
func (l *Logger) Info(format string, v ...interface{}) {
	if l.allowed(LogLevelInfo) {
		l.logger.Infof(format, v...)
	}
}

// Warn 记录警告
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.allowed(LogLevelWarn) {
		l.logger.Warnf(format, v...)
	}
}

// Error 记录错误
func (l *Logger) Error(format string, v ...interface{}) {
	if l.allowed(LogLevelError) {
		l.logger.Errorf(format, v...)
	}
}

func (l *Logger) allowed(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled && level >= l.level && l.level != LogLevelNone
}

// 全局便捷函数
func Debug(format string, v ...interface{}) {
	GetLogger().Debug(format, v...)
}

func Info(format string, v ...interface{}) {
	GetLogger().Info(format, v...)
}

func Warn(format string, v ...interface{}) {
	GetLogger().Warn(format, v...)
}

func Error(format string, v ...interface{}) {
	GetLogger().Error(format, v...)
}

// SetLogLevel 设置全局日志级别
func SetLogLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

// EnableLogging 启用或禁用全局日志
func EnableLogging(enabled bool) {
	GetLogger().SetEnabled(enabled)
}
