package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitLogger(t *testing.T) {
	tempDir := t.TempDir()

	config := DefaultLogConfig()
	config.Level = "debug"
	config.LogDir = filepath.Join(tempDir, "nested")
	config.Quiet = true

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	if _, err := os.Stat(config.LogDir); os.IsNotExist(err) {
		t.Errorf("日志目录未创建: %s", config.LogDir)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	mainLogPath := filepath.Join(config.LogDir, "emailfinder.log")
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{
		Level:    "info",
		LogDir:   tempDir,
		MaxSize:  10,
		FileName: "levels",
		Quiet:    true,
	}

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Infof("格式化信息日志: %s", "可见")
	Debugf("调试日志不应写入: %v", true)

	content, err := os.ReadFile(filepath.Join(tempDir, "levels.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}

	if !strings.Contains(string(content), "格式化信息日志: 可见") {
		t.Error("info日志未写入")
	}
	if strings.Contains(string(content), "调试日志不应写入") {
		t.Error("debug日志不应在info级别写入")
	}
}

func TestErrorLogOnlyContainsErrors(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{Level: "debug", LogDir: tempDir, MaxSize: 10, Quiet: true}
	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Warnf("这是警告")
	Errorf("这是错误: %d", 42)

	content, err := os.ReadFile(filepath.Join(tempDir, "emailfinder_error.log"))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	if !strings.Contains(string(content), "这是错误: 42") {
		t.Error("错误日志缺少error级别内容")
	}
	if strings.Contains(string(content), "这是警告") {
		t.Error("错误日志不应包含warn级别内容")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.FileName != "emailfinder" {
		t.Errorf("默认文件名错误: %s", config.FileName)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}

func TestEmailForLog(t *testing.T) {
	config := DefaultLogConfig()
	config.LogDir = t.TempDir()
	config.Quiet = true

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	if got := EmailForLog("info@acme.com"); got != "in***@acme.com" {
		t.Errorf("默认应脱敏: %s", got)
	}

	config.MaskEmails = false
	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	if got := EmailForLog("info@acme.com"); got != "info@acme.com" {
		t.Errorf("关闭脱敏后应原样输出: %s", got)
	}
}

func TestComponentLogger(t *testing.T) {
	config := LogConfig{Level: "info", LogDir: t.TempDir(), FileName: "component", Quiet: true}
	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	logger := Component("queue")
	logger.Info().Msg("批次开始")

	content, err := os.ReadFile(filepath.Join(config.LogDir, "component.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(content), `"component":"queue"`) {
		t.Errorf("子日志器应带component字段: %s", content)
	}
}
