package utils

import (
	"net/http"
	"strings"
	"testing"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

func TestHeaderValidator_Check(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		scope       models.HeaderScope
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", models.ScopeSite, "Accept-Language", "de-DE", false},
		{"合法值-空字符串", models.ScopeSite, "X-Empty", "", false},
		{"非法名称-空格", models.ScopeSite, "User Agent", "x", true},
		{"非法名称-下划线", models.ScopeSite, "User_Agent", "x", true},
		{"非法名称-空字符串", models.ScopeSite, "", "x", true},
		{"客户端管理-Host", models.ScopeSearch, "Host", "example.com", true},
		{"客户端管理-不区分大小写", models.ScopeSite, "accept-encoding", "br", true},
		{"凭据-站点范围", models.ScopeSite, "Cookie", "sid=1", true},
		{"凭据-小写名称", models.ScopeSite, "authorization", "Bearer x", true},
		{"凭据-搜索范围", models.ScopeSearch, "Cookie", "CONSENT=YES+", false},
		{"非法值-超长", models.ScopeSite, "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", models.ScopeSite, "User-Agent", "value\x00bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Check(tt.scope, tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateAll(t *testing.T) {
	validator := NewHeaderValidator()

	headers := http.Header{
		"Host":       []string{"example.com"},
		"User Agent": []string{"x"},
		"X-Ok":       []string{"fine"},
	}

	err := validator.ValidateAll(models.ScopeSite, headers)
	if err == nil {
		t.Fatal("期望返回错误")
	}
	if !strings.Contains(err.Error(), "Host@site") || !strings.Contains(err.Error(), "User Agent") {
		t.Errorf("应同时报告所有非法头部: %v", err)
	}

	if err := validator.Validate(models.ScopeSite, http.Header{"X-Ok": []string{"fine"}}); err != nil {
		t.Errorf("合法头部不应报错: %v", err)
	}
}

func TestBrowserHeaders(t *testing.T) {
	got := BrowserHeaders(http.Header{
		"User-Agent":      {"Bot/1.0"},
		"Accept-Language": {"de-DE", "en"},
		"X-Empty":         {},
	})
	if len(got) != 1 || got["Accept-Language"] != "de-DE" {
		t.Errorf("User-Agent和空值应被过滤,多值只取第一个: %v", got)
	}
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	t.Run("敏感头部脱敏", func(t *testing.T) {
		tests := []struct {
			name  string
			value string
			want  string
		}{
			{"Authorization", "Bearer token123", "Bearer ***"},
			{"X-Api-Key", "key12345678", "key1***5678"},
			{"X-Session", "short", "***"},
			{"Cookie", "CONSENT=YES+; NID=511=abc", "CONSENT=***; NID=***"},
		}
		for _, tt := range tests {
			if got := redactor.RedactValue(tt.name, tt.value); got != tt.want {
				t.Errorf("%s: 期望 %q, 得到 %q", tt.name, tt.want, got)
			}
		}
	})

	t.Run("非敏感头部不应脱敏", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "Mozilla/5.0")
		if redactor.Redact(headers)["User-Agent"] != "Mozilla/5.0" {
			t.Error("非敏感头部不应被脱敏")
		}
	})

	t.Run("格式化输出有序", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-B", "2")
		headers.Set("X-A", "1")
		headers.Set("X-Token", "abcdefghijkl")
		if got := redactor.String(headers); got != "X-A: 1, X-B: 2, X-Token: abcd***ijkl" {
			t.Errorf("输出错误: %s", got)
		}
	})
}
