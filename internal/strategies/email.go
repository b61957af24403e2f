package strategies

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var (
	// emailRegex 邮箱匹配(宽松),结果再经过Normalize和过滤
	emailRegex = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,24}`)

	// 常见的文字混淆写法: info [at] example [dot] com
	atObfuscation  = regexp.MustCompile(`(?i)\s*[\[(\{]\s*(?:at|@)\s*[\])\}]\s*`)
	dotObfuscation = regexp.MustCompile(`(?i)\s*[\[(\{]\s*(?:dot|\.)\s*[\])\}]\s*`)

	// placeholderDomains 示例/占位域名,除非就是目标自己的域名
	placeholderDomains = []string{
		"example.com", "example.org", "example.net", "domain.com", "yourdomain.com",
		"email.com", "test.com", "sentry.io", "sentry-next.wixpress.com", "wixpress.com",
	}

	// rejectedLocalParts 本地部分包含这些内容的邮箱一律拒绝
	rejectedLocalParts = []string{
		"noreply", "no-reply", "donotreply", "do-not-reply", "mailer-daemon",
		"abuse", "postmaster", "hostmaster", "webmaster", "privacy", "gdpr",
		"youremail", "your.email", "yourname", "sampleemail", "name", "email",
		"user", "username", "firstname", "lastname",
	}

	// rejectedSubstrings 出现在整个地址中的可疑片段(图片文件名、哈希等)
	rejectedSubstrings = []string{
		"@2x", "@3x", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
		"sentry", "wixpress", "whoisguard", "privacyguard", "domainsbyproxy",
		"redacted", "contactprivacy", "withheldforprivacy",
	}

	// preferredLocalParts 优先选择的本地部分关键词
	preferredLocalParts = []string{"info", "contact", "sales", "hello"}

	// fileLikeTLDs 看起来像文件扩展名的"顶级域"
	fileLikeTLDs = map[string]bool{
		"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true, "webp": true,
		"css": true, "js": true, "ico": true, "bmp": true, "tiff": true, "mp4": true,
	}
)

// Normalize 规范化邮箱: 去掉mailto:前缀和查询参数,去空白,域名部分小写
// 无法解析为邮箱时返回空字符串
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		s = s[7:]
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	s = strings.Trim(strings.TrimSpace(s), "<>\"'.,;:()[]")

	// mailto:a@x.com,b@y.com 只取第一个
	if i := strings.IndexAny(s, ",; "); i >= 0 {
		s = s[:i]
	}

	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	domain = strings.Trim(strings.ToLower(domain), ".")
	if !strings.Contains(domain, ".") {
		return ""
	}
	return local + "@" + domain
}

// Key 邮箱的比较键(整体小写)
func Key(email string) string {
	return strings.ToLower(email)
}

// IsAcceptable 检查邮箱是否通过过滤规则
// targetDomain为目标站点域名,属于目标站点的占位域名不会被拒绝
func IsAcceptable(email, targetDomain string) bool {
	local, domain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok || len(local) > 64 || len(email) > 254 {
		return false
	}

	tld := domain[strings.LastIndex(domain, ".")+1:]
	if fileLikeTLDs[tld] {
		return false
	}

	// 哈希形式的本地部分(如sentry DSN): 长串十六进制
	if len(local) >= 24 {
		if _, err := hex.DecodeString(local); err == nil {
			return false
		}
	}

	for _, part := range rejectedLocalParts {
		if local == part || strings.HasPrefix(local, part+".") || strings.HasPrefix(local, part+"-") ||
			(len(part) > 5 && strings.Contains(local, part)) {
			return false
		}
	}

	for _, sub := range rejectedSubstrings {
		if strings.Contains(email, sub) {
			return false
		}
	}

	target := strings.TrimPrefix(strings.ToLower(targetDomain), "www.")
	for _, placeholder := range placeholderDomains {
		if (domain == placeholder || strings.HasSuffix(domain, "."+placeholder)) && domain != target {
			return false
		}
	}

	return true
}

// IsPreferred 本地部分是否包含优先关键词
func IsPreferred(email string) bool {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	for _, p := range preferredLocalParts {
		if strings.Contains(local, p) {
			return true
		}
	}
	return false
}

// ExtractEmails 从文本中提取邮箱,按出现顺序去重,已规范化
func ExtractEmails(text string) []string {
	text = atObfuscation.ReplaceAllString(text, "@")
	text = dotObfuscation.ReplaceAllString(text, ".")

	var out []string
	seen := make(map[string]bool)
	for _, m := range emailRegex.FindAllString(text, -1) {
		email := Normalize(m)
		if email == "" || seen[Key(email)] {
			continue
		}
		seen[Key(email)] = true
		out = append(out, email)
	}
	return out
}

// SelectBest 从按文档顺序排列的候选中选出一个
// 先过滤不可接受的地址;本地部分含info/contact/sales/hello的优先,否则取第一个
func SelectBest(candidates []string, targetDomain string) string {
	first := ""
	for _, c := range candidates {
		email := Normalize(c)
		if email == "" || !IsAcceptable(email, targetDomain) {
			continue
		}
		if IsPreferred(email) {
			return email
		}
		if first == "" {
			first = email
		}
	}
	return first
}

// DecodeCFEmail 解码Cloudflare的data-cfemail混淆
// 第一个字节是密钥,其余每个字节与密钥异或
func DecodeCFEmail(encoded string) string {
	raw, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil || len(raw) < 2 {
		return ""
	}
	key := raw[0]
	out := make([]byte, len(raw)-1)
	for i, b := range raw[1:] {
		out[i] = b ^ key
	}
	return Normalize(string(out))
}

// BelongsToDomain 邮箱域名是否属于目标域名(含子域名)
func BelongsToDomain(email, domain string) bool {
	_, emailDomain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok {
		return false
	}
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	return emailDomain == domain || strings.HasSuffix(emailDomain, "."+domain) || strings.HasSuffix(domain, "."+emailDomain)
}
