package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderScope 自定义头部的发送范围
type HeaderScope string

const (
	// ScopeSite 发往目标企业网站: 浏览器上下文和sitemap抓取
	ScopeSite HeaderScope = "site"
	// ScopeSearch 只发往搜索引擎
	ScopeSearch HeaderScope = "search"
)

// HeaderConfig headers.yaml的结构
//
// headers下的头部发往所有请求;search下的头部只附加到搜索引擎请求上,
// 同名时覆盖headers中的值。viper读取后键名为小写。
type HeaderConfig struct {
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
	Search  map[string]string `mapstructure:"search" yaml:"search"`
}

// ToHeader 把配置中的一节转为http.Header
func ToHeader(section map[string]string) http.Header {
	h := make(http.Header, len(section))
	for name, value := range section {
		h.Set(name, value)
	}
	return h
}

// CliHeaders 命令行 -H 参数,每项为 "Name: Value"
// 前缀 "search:" 表示只用于搜索引擎,如 "search:Cookie: CONSENT=YES+"
type CliHeaders []string

// Parse 按范围解析命令行头部
func (ch CliHeaders) Parse() (all http.Header, search http.Header, err error) {
	all, search = make(http.Header), make(http.Header)
	for i, s := range ch {
		target := all
		if rest, ok := strings.CutPrefix(s, "search:"); ok {
			target, s = search, rest
		}
		name, value, ok := strings.Cut(s, ":")
		if !ok {
			return nil, nil, fmt.Errorf("参数 --header 第%d项格式错误: 缺少冒号,应为 'Name: Value'", i+1)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil, fmt.Errorf("参数 --header 第%d项格式错误: 头部名称为空", i+1)
		}
		target.Set(name, strings.TrimSpace(value))
	}
	return all, search, nil
}

// HeaderProvider 按范围提供已合并的请求头部
// 实现需并发安全,返回的http.Header归调用方所有
type HeaderProvider interface {
	HeadersFor(scope HeaderScope) (http.Header, error)
}

// ValidationError 头部验证失败
type ValidationError struct {
	Scope      HeaderScope
	HeaderName string
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s", e.HeaderName)
	if e.Scope != "" {
		msg += "@" + string(e.Scope)
	}
	msg += "]: " + e.Reason
	if e.Suggestion != "" {
		msg += " (建议: " + e.Suggestion + ")"
	}
	return msg
}

// ConfigError 头部配置文件无法读取或解析
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
