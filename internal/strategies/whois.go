package strategies

import (
	"context"
	"regexp"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/likexian/whois"
)

// WhoisClient 查询域名的原始WHOIS文本
type WhoisClient interface {
	Lookup(ctx context.Context, domain string) (string, error)
}

// likexianClient 基于likexian/whois的实现
type likexianClient struct {
	client *whois.Client
}

// NewWhoisClient 创建WHOIS客户端
func NewWhoisClient(timeout time.Duration) WhoisClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &likexianClient{client: whois.NewClient().SetTimeout(timeout)}
}

// Lookup 查询WHOIS,底层库不支持ctx,取消时丢弃结果
func (c *likexianClient) Lookup(ctx context.Context, domain string) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := c.client.Whois(domain)
		ch <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.text, r.err
	}
}

// whoisContactLine 注册人/管理/技术联系人的邮箱行
var whoisContactLine = regexp.MustCompile(`(?im)^\s*(?:registrant|admin|administrative|tech|technical)[ \-]?(?:contact )?e-?mail\s*:\s*(\S+)`)

// Whois WHOIS策略: 从注册信息中取联系人邮箱,隐私保护和滥用投诉地址会被过滤
type Whois struct {
	client WhoisClient
}

// NewWhois 创建WHOIS策略
func NewWhois(client WhoisClient) *Whois {
	return &Whois{client: client}
}

func (w *Whois) Name() models.EmailSource { return models.SourceWhois }

func (w *Whois) Enabled(opts models.FindOptions) bool {
	return opts.UseWhois && w.client != nil
}

func (w *Whois) Run(ctx context.Context, sess *Session) (Candidate, error) {
	domain := crawlers.SiteOf(sess.Target.Domain)

	raw, err := w.client.Lookup(ctx, domain)
	if err != nil {
		return Candidate{}, err
	}

	email := ParseWhoisEmail(raw, domain)
	if email == "" {
		return Candidate{}, nil
	}
	return Candidate{Email: email, Source: models.SourceWhois}, nil
}

// ParseWhoisEmail 从WHOIS文本中挑出联系人邮箱
// 优先使用注册人/管理/技术联系人字段,其次是文本中属于该域名的邮箱
func ParseWhoisEmail(raw, domain string) string {
	var labelled []string
	for _, m := range whoisContactLine.FindAllStringSubmatch(raw, -1) {
		if email := Normalize(m[1]); email != "" {
			labelled = append(labelled, email)
		}
	}
	if best := SelectBest(labelled, domain); best != "" {
		return best
	}

	// 未标注的邮箱多半属于注册商,只接受目标域名自己的
	var owned []string
	for _, email := range ExtractEmails(raw) {
		if BelongsToDomain(email, domain) {
			owned = append(owned, email)
		}
	}
	return SelectBest(owned, domain)
}
