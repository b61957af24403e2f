package strategies

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/rs/zerolog/log"
)

// PageScan 落地页扫描: 导航到目标URL,从渲染后的DOM中提取邮箱
type PageScan struct{}

// NewPageScan 创建落地页扫描策略
func NewPageScan() *PageScan {
	return &PageScan{}
}

func (p *PageScan) Name() models.EmailSource { return models.SourcePageScan }

func (p *PageScan) Enabled(models.FindOptions) bool { return true }

// Run 导航到落地页并扫描
// 导航失败的错误原样返回,由调用方分类重试
func (p *PageScan) Run(ctx context.Context, sess *Session) (Candidate, error) {
	target := sess.Target.URL

	status, err := sess.Browser.Navigate(ctx, target)
	if err != nil {
		return Candidate{}, err
	}

	html, err := sess.Browser.HTML(ctx)
	if err != nil {
		return Candidate{}, err
	}

	finalURL := sess.Browser.URL()
	if finalURL == "" {
		finalURL = target
	}
	sess.LandingURL = finalURL
	sess.LandingHTML = html

	candidates, err := ScanHTML(html)
	if err != nil {
		return Candidate{}, err
	}
	if best := SelectBest(candidates, sess.Target.Domain); best != "" {
		return Candidate{Email: best, Source: models.SourcePageScan, PageURL: finalURL}, nil
	}

	if statusErr := models.StatusError(status); statusErr != nil {
		return Candidate{}, fmt.Errorf("%w: HTTP %d %s", statusErr, status, target)
	}
	if blocked, kind := DetectBlock(status, html); blocked {
		log.Debug().Str("url", target).Str("block", string(kind)).Msg("落地页被反爬拦截")
		return Candidate{}, fmt.Errorf("%w: %s挑战页 %s", models.ErrBlocked, kind, target)
	}

	return Candidate{}, nil
}

// ScanHTML 从HTML中按文档顺序提取候选邮箱
// 顺序: mailto链接 → Cloudflare混淆地址 → 可见文本
func ScanHTML(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	var out []string
	seen := make(map[string]bool)
	add := func(email string) {
		if email == "" || seen[Key(email)] {
			return
		}
		seen[Key(email)] = true
		out = append(out, email)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if len(href) >= 7 && strings.EqualFold(href[:7], "mailto:") {
			add(Normalize(href))
			return
		}
		// /cdn-cgi/l/email-protection#<hex>
		if i := strings.Index(href, "email-protection#"); i >= 0 {
			add(DecodeCFEmail(href[i+len("email-protection#"):]))
		}
	})

	doc.Find("[data-cfemail]").Each(func(_ int, s *goquery.Selection) {
		encoded, _ := s.Attr("data-cfemail")
		add(DecodeCFEmail(encoded))
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Find("script, style, noscript, template").Remove()
	for _, email := range ExtractEmails(body.Text()) {
		add(email)
	}

	return out, nil
}
