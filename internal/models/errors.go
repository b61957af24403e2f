package models

import (
	"context"
	"errors"
	"net"
	"strings"
)

// 终止性故障: 不重试,直接记为失败
var (
	ErrInvalidTarget = errors.New("无效的目标地址")
	ErrDNSFailure    = errors.New("域名解析失败")
	ErrBlocked       = errors.New("目标站点拦截了访问")
)

// 瞬时故障: 可换上下文重试
var (
	ErrNavigationTimeout = errors.New("页面导航超时")
	ErrConnectionReset   = errors.New("连接被重置")
	ErrServerError       = errors.New("目标站点返回5xx")
	ErrContextCorrupted  = errors.New("浏览器上下文已损坏")
)

// 池与批次相关错误
var (
	ErrPoolExhausted      = errors.New("在时间预算内无法获取浏览器上下文")
	ErrPoolClosed         = errors.New("浏览器上下文池已关闭")
	ErrBrowserUnavailable = errors.New("无法创建任何浏览器上下文")
	ErrPersistence        = errors.New("保存邮箱到数据库失败")
	ErrQueueRunning       = errors.New("已有批次正在运行")
)

// FaultKind 故障分类
type FaultKind int

const (
	FaultUnknown    FaultKind = iota // 无法归类,按瞬时处理
	FaultTransient                   // 瞬时故障,可重试
	FaultTerminal                    // 终止故障,不重试
	FaultCorruption                  // 上下文损坏,需要修复后重试
)

func (k FaultKind) String() string {
	switch k {
	case FaultTransient:
		return "transient"
	case FaultTerminal:
		return "terminal"
	case FaultCorruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Retryable 该类故障是否允许重试
func (k FaultKind) Retryable() bool {
	return k != FaultTerminal
}

// chrome的net::ERR_*错误码到故障类别的映射
var chromeNetErrors = map[string]error{
	"err_name_not_resolved":        ErrDNSFailure,
	"err_name_resolution_failed":   ErrDNSFailure,
	"err_address_unreachable":      ErrDNSFailure,
	"err_invalid_url":              ErrInvalidTarget,
	"err_unsafe_port":              ErrInvalidTarget,
	"err_blocked_by_client":        ErrBlocked,
	"err_blocked_by_response":      ErrBlocked,
	"err_blocked_by_administrator": ErrBlocked,
	"err_timed_out":                ErrNavigationTimeout,
	"err_connection_timed_out":     ErrNavigationTimeout,
	"err_connection_reset":         ErrConnectionReset,
	"err_connection_closed":        ErrConnectionReset,
	"err_connection_refused":       ErrConnectionReset,
	"err_connection_aborted":       ErrConnectionReset,
	"err_empty_response":           ErrConnectionReset,
	"err_network_changed":          ErrConnectionReset,
	"err_ssl_protocol_error":       ErrConnectionReset,
}

// Classify 将底层错误归类为故障类别
func Classify(err error) FaultKind {
	if err == nil {
		return FaultUnknown
	}

	switch {
	case errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrDNSFailure), errors.Is(err, ErrBlocked):
		return FaultTerminal
	case errors.Is(err, ErrContextCorrupted):
		return FaultCorruption
	case errors.Is(err, ErrNavigationTimeout), errors.Is(err, ErrConnectionReset),
		errors.Is(err, ErrServerError), errors.Is(err, context.DeadlineExceeded):
		return FaultTransient
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return FaultTerminal
		}
		return FaultTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FaultTransient
	}

	if mapped := MapChromeError(err); mapped != nil {
		return Classify(mapped)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection reset by peer"), strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "tls handshake timeout"):
		return FaultTransient
	case strings.Contains(msg, "no such host"):
		return FaultTerminal
	case strings.Contains(msg, "target closed"), strings.Contains(msg, "session closed"),
		strings.Contains(msg, "websocket: close"), strings.Contains(msg, "execution context was destroyed"):
		return FaultCorruption
	}

	return FaultUnknown
}

// MapChromeError 识别浏览器返回的net::ERR_*错误,返回对应的哨兵错误
// 无法识别时返回nil
func MapChromeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	idx := strings.Index(msg, "net::")
	if idx < 0 {
		return nil
	}
	code := msg[idx+len("net::"):]
	if end := strings.IndexFunc(code, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z'))
	}); end >= 0 {
		code = code[:end]
	}
	return chromeNetErrors[code]
}

// StatusError 根据HTTP状态码返回对应的故障错误
// 2xx/3xx/4xx(除403/429外)返回nil
func StatusError(statusCode int) error {
	switch {
	case statusCode >= 500:
		return ErrServerError
	case statusCode == 429:
		return ErrServerError
	case statusCode == 403:
		return ErrBlocked
	default:
		return nil
	}
}
