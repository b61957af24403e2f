package utils

import (
	"net/http"
	"regexp"
	"strings"
)

// sensitiveHeaderPattern 名称命中即视为敏感头部
var sensitiveHeaderPattern = regexp.MustCompile(`(?i)(authorization|token|api-?key|secret|password|credential|cookie|session)`)

// HeaderRedactor 日志输出前对敏感头部脱敏
type HeaderRedactor struct {
	pattern *regexp.Regexp
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{pattern: sensitiveHeaderPattern}
}

// IsSensitive 头部名称是否敏感
func (hr *HeaderRedactor) IsSensitive(name string) bool {
	return hr.pattern.MatchString(name)
}

// RedactValue 脱敏单个值,非敏感头部原样返回
//
//	Cookie: 保留cookie名,隐藏值 (CONSENT=***; NID=***)
//	Bearer: 只保留类型
//	长值:   保留首尾各4个字符
func (hr *HeaderRedactor) RedactValue(name, value string) string {
	if !hr.IsSensitive(name) {
		return value
	}

	if strings.EqualFold(name, "Cookie") {
		parts := strings.Split(value, ";")
		for i, part := range parts {
			cookie, _, _ := strings.Cut(strings.TrimSpace(part), "=")
			parts[i] = cookie + "=***"
		}
		return strings.Join(parts, "; ")
	}
	if scheme, _, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return scheme + " ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// Redact 返回脱敏后的头部,每个头部只取第一个值
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[name] = hr.RedactValue(name, values[0])
		}
	}
	return out
}

// String 按名称排序输出 "Name: value, ..."
func (hr *HeaderRedactor) String(headers http.Header) string {
	names := sortedNames(headers)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if values := headers[name]; len(values) > 0 {
			parts = append(parts, name+": "+hr.RedactValue(name, values[0]))
		}
	}
	return strings.Join(parts, ", ")
}
