package utils

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// MaxHeaderValueLength 头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

var (
	// transportHeaders 由HTTP客户端或浏览器自行管理,任何范围都不允许配置
	// Accept-Encoding由抓取器自行协商,覆盖后可能拿到无法解压的响应
	transportHeaders = []string{
		"Host",
		"Content-Length",
		"Transfer-Encoding",
		"Connection",
		"Accept-Encoding",
		"Upgrade",
		"Te",
	}

	// credentialHeaders 会把凭据发给每一个目标网站,只允许用于搜索引擎
	credentialHeaders = []string{
		"Cookie",
		"Authorization",
		"Proxy-Authorization",
	}

	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderValidator 校验自定义头部
//
// 名称只允许字母数字和连字符,值只允许可打印ASCII。
// 站点范围的头部会随浏览器上下文发往所有目标网站,因此不能携带凭据。
type HeaderValidator struct {
	transport  map[string]bool
	credential map[string]bool
	maxValue   int
}

// NewHeaderValidator 创建校验器
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{
		transport:  canonicalSet(transportHeaders),
		credential: canonicalSet(credentialHeaders),
		maxValue:   MaxHeaderValueLength,
	}
}

func canonicalSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[http.CanonicalHeaderKey(n)] = true
	}
	return set
}

// Check 校验单个头部
func (hv *HeaderValidator) Check(scope models.HeaderScope, name, value string) error {
	fail := func(reason, suggestion string) error {
		return &models.ValidationError{Scope: scope, HeaderName: name, Reason: reason, Suggestion: suggestion}
	}

	switch {
	case name == "":
		return fail("头部名称不能为空", "")
	case !headerNamePattern.MatchString(name):
		return fail("头部名称包含非法字符", "只使用字母、数字和连字符,如 'Accept-Language'")
	}

	canonical := http.CanonicalHeaderKey(name)
	if hv.transport[canonical] {
		return fail("该头部由HTTP客户端管理", fmt.Sprintf("删除 '%s'", name))
	}
	if scope != models.ScopeSearch && hv.credential[canonical] {
		return fail("凭据头部会被发送到所有目标网站", fmt.Sprintf("放到headers.yaml的search节,或使用 -H 'search:%s: ...'", canonical))
	}

	if len(value) > hv.maxValue {
		return fail(fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), hv.maxValue), "")
	}
	if !headerValuePattern.MatchString(value) {
		return fail("头部值包含控制字符或非ASCII字符", "")
	}
	return nil
}

// Validate 返回第一个非法头部的错误,按名称顺序检查以保证结果稳定
func (hv *HeaderValidator) Validate(scope models.HeaderScope, headers http.Header) error {
	for _, name := range sortedNames(headers) {
		for _, value := range headers[name] {
			if err := hv.Check(scope, name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateAll 返回所有非法头部的错误 (--validate-config一次性报告)
func (hv *HeaderValidator) ValidateAll(scope models.HeaderScope, headers http.Header) error {
	var errs []error
	for _, name := range sortedNames(headers) {
		for _, value := range headers[name] {
			if err := hv.Check(scope, name, value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func sortedNames(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BrowserHeaders 过滤出可以通过浏览器extra headers发送的头部
// User-Agent交给浏览器的UA覆盖设置,通过extra headers发送会与navigator.userAgent不一致
func BrowserHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 || strings.EqualFold(name, "User-Agent") {
			continue
		}
		out[name] = values[0]
	}
	return out
}
