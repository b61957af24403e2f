// Package config 读取自定义HTTP头部配置 (configs/headers.yaml)
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认配置文件路径
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 << 20
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// HeaderConfigLoader 头部配置文件加载器
type HeaderConfigLoader struct {
	path string
}

// NewHeaderConfigLoader 创建加载器,path为空时使用DefaultConfigFile
func NewHeaderConfigLoader(path string) *HeaderConfigLoader {
	if path == "" {
		path = DefaultConfigFile
	}
	return &HeaderConfigLoader{path: path}
}

// Path 配置文件路径
func (l *HeaderConfigLoader) Path() string {
	return l.path
}

// WriteTemplate 写出带注释的模板,文件已存在时不覆盖,返回是否新建
func (l *HeaderConfigLoader) WriteTemplate() (bool, error) {
	if _, err := os.Stat(l.path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录: %w", err)
	}
	if err := os.WriteFile(l.path, []byte(defaultHeaderTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", l.path, err)
	}
	return true, nil
}

func emptyConfig() *models.HeaderConfig {
	return &models.HeaderConfig{
		Headers: make(map[string]string),
		Search:  make(map[string]string),
	}
}

// LoadConfig 读取headers和search两节
// 文件不存在或被其他进程锁定时返回空配置,由内置默认头部兜底
func (l *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		utils.Debugf("未找到头部配置文件 [%s], 使用默认头部", l.path)
		return emptyConfig(), nil
	}
	if err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认头部", l.path)
			return emptyConfig(), nil
		}
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}

	cfg := emptyConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: fmt.Errorf("配置绑定失败: %w", err)}
	}
	// 节存在但为空时viper会写入nil
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	if cfg.Search == nil {
		cfg.Search = make(map[string]string)
	}
	return cfg, nil
}
