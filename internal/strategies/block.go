package strategies

import "strings"

// BlockType 拦截类型
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
)

// DetectBlock 检查渲染后的页面是否是反爬挑战页
// 只有在页面里找不到邮箱时才调用,联系表单上的验证码不算拦截
func DetectBlock(status int, html string) (bool, BlockType) {
	lower := strings.ToLower(html)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cf-challenge") ||
		strings.Contains(lower, "challenges.cloudflare.com") && strings.Contains(lower, "<title>just a moment") {
		return true, BlockCloudflare
	}

	if status == 403 || status == 503 || status == 429 {
		if strings.Contains(lower, "cloudflare") {
			return true, BlockCloudflare
		}
	}

	// 整页只有一个验证码: 页面很小且包含captcha标记
	if len(lower) < 6000 &&
		(strings.Contains(lower, "g-recaptcha") || strings.Contains(lower, "h-captcha") ||
			strings.Contains(lower, "captcha-delivery") || strings.Contains(lower, "are you a robot")) {
		return true, BlockCaptcha
	}

	return false, BlockNone
}
