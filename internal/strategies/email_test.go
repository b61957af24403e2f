package strategies

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

// encodeCF 生成Cloudflare data-cfemail形式的编码
func encodeCF(key byte, email string) string {
	out := []byte{key}
	for i := 0; i < len(email); i++ {
		out = append(out, email[i]^key)
	}
	return hex.EncodeToString(out)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"mailto:Info@Acme.COM":             "Info@acme.com",
		"MAILTO:sales@acme.com?subject=Hi": "sales@acme.com",
		" <hello@acme.com>. ":              "hello@acme.com",
		"mailto:a@acme.com,b@acme.com":     "a@acme.com",
		"mailto:info%40acme.com":           "info@acme.com",
		"not-an-email":                     "",
		"user@localhost":                   "",
		"a@b@c.com":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "输入: %q", in)
	}
}

func TestIsAcceptable(t *testing.T) {
	t.Run("拒绝系统地址", func(t *testing.T) {
		for _, e := range []string{"noreply@acme.com", "no-reply@acme.com", "abuse@acme.com", "postmaster@acme.com"} {
			assert.False(t, IsAcceptable(e, "acme.com"), e)
		}
	})

	t.Run("拒绝图片文件名", func(t *testing.T) {
		assert.False(t, IsAcceptable("logo@2x.png", "acme.com"))
		assert.False(t, IsAcceptable("icon@acme.webp", "acme.com"))
	})

	t.Run("拒绝哈希地址", func(t *testing.T) {
		assert.False(t, IsAcceptable("8f14e45fceea167a5a36dedd4bea2543@sentry.io", "acme.com"))
	})

	t.Run("占位域名仅在非目标域名时拒绝", func(t *testing.T) {
		assert.False(t, IsAcceptable("info@example.com", "acme.com"))
		assert.True(t, IsAcceptable("info@example.com", "example.com"))
		assert.True(t, IsAcceptable("info@example.com", "www.example.com"))
	})

	t.Run("普通地址通过", func(t *testing.T) {
		assert.True(t, IsAcceptable("jane.doe@acme.com", "acme.com"))
		assert.True(t, IsAcceptable("office@jstor.org", "jstor.org"))
	})
}

func TestExtractEmails(t *testing.T) {
	text := `Write to Sales@Acme.com or info [at] acme [dot] com. Again: sales@acme.com`
	got := ExtractEmails(text)
	assert.Equal(t, []string{"Sales@acme.com", "info@acme.com"}, got)
}

func TestSelectBest(t *testing.T) {
	t.Run("优先关键词", func(t *testing.T) {
		got := SelectBest([]string{"jane@acme.com", "contact@acme.com"}, "acme.com")
		assert.Equal(t, "contact@acme.com", got)
	})

	t.Run("无关键词时取文档顺序第一个", func(t *testing.T) {
		got := SelectBest([]string{"noreply@acme.com", "jane@acme.com", "bob@acme.com"}, "acme.com")
		assert.Equal(t, "jane@acme.com", got)
	})

	t.Run("全部被过滤", func(t *testing.T) {
		assert.Empty(t, SelectBest([]string{"noreply@acme.com", "x@example.com"}, "acme.com"))
	})
}

func TestDecodeCFEmail(t *testing.T) {
	assert.Equal(t, "info@acme.com", DecodeCFEmail(encodeCF(0x42, "info@acme.com")))
	assert.Empty(t, DecodeCFEmail("zz"))
	assert.Empty(t, DecodeCFEmail("42"))
}

func TestBelongsToDomain(t *testing.T) {
	assert.True(t, BelongsToDomain("info@acme.com", "acme.com"))
	assert.True(t, BelongsToDomain("info@mail.acme.com", "www.acme.com"))
	assert.True(t, BelongsToDomain("info@acme.com", "shop.acme.com"))
	assert.False(t, BelongsToDomain("info@other.com", "acme.com"))
	assert.False(t, BelongsToDomain("info@notacme.com", "acme.com"))
}

func TestDetectBlock(t *testing.T) {
	blocked, kind := DetectBlock(503, `<html><title>Just a moment...</title><div id="cf-browser-verification"></div></html>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, kind)

	blocked, kind = DetectBlock(200, `<html><body><div class="g-recaptcha"></div></body></html>`)
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, kind)

	blocked, _ = DetectBlock(200, `<html><body><h1>Welcome</h1></body></html>`)
	assert.False(t, blocked)
}

func TestParseWhoisEmail(t *testing.T) {
	raw := `Domain Name: ACME.COM
Registrar Abuse Contact Email: abuse@registrar.com
Registrant Email: Select Request Email Form at https://domains.example
Admin Email: hostmaster@acme.com
Tech Email: it@acme.com
`
	assert.Equal(t, "it@acme.com", ParseWhoisEmail(raw, "acme.com"))

	redacted := `Registrant Email: REDACTED FOR PRIVACY
Registrar Abuse Contact Email: abuse@registrar.com`
	assert.Empty(t, ParseWhoisEmail(redacted, "acme.com"))
}
