package strategies

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultSearchEndpoints 各搜索引擎的HTML结果页地址,%s为已转义的查询串
var DefaultSearchEndpoints = map[string]string{
	"google":     "https://www.google.com/search?hl=en&num=20&q=%s",
	"bing":       "https://www.bing.com/search?count=30&q=%s",
	"duckduckgo": "https://html.duckduckgo.com/html/?q=%s",
}

// searchRequestTimeout 单次搜索请求的时间上限
const searchRequestTimeout = 10 * time.Second

// SearchEngine 搜索引擎策略: 按site:和"@域名"查询,优先本域名邮箱
type SearchEngine struct {
	endpoints map[string]string
	userAgent string
	headers   models.HeaderProvider
	limiter   *rate.Limiter
}

// SearchConfig 搜索引擎策略配置
type SearchConfig struct {
	Endpoints map[string]string // 为空时使用DefaultSearchEndpoints
	UserAgent string
	// Headers 搜索范围的自定义头部(可选)
	Headers models.HeaderProvider

	// RequestsPerMinute 所有工作协程共享的请求速率,<=0时不限速
	RequestsPerMinute int
}

// NewSearchEngine 创建搜索引擎策略
func NewSearchEngine(cfg SearchConfig) *SearchEngine {
	endpoints := make(map[string]string, len(DefaultSearchEndpoints))
	for name, tmpl := range DefaultSearchEndpoints {
		endpoints[name] = tmpl
	}
	for name, tmpl := range cfg.Endpoints {
		endpoints[strings.ToLower(name)] = tmpl
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &SearchEngine{
		endpoints: endpoints,
		userAgent: cfg.UserAgent,
		headers:   cfg.Headers,
		limiter:   limiter,
	}
}

func (s *SearchEngine) Name() models.EmailSource { return models.SourceSearchEngine }

func (s *SearchEngine) Enabled(opts models.FindOptions) bool {
	return opts.UseSearchEngines
}

// Run 依次执行查询,返回第一个属于目标域名的可接受邮箱
// 所有查询都没有本域名邮箱时,退回到结果中最好的外域邮箱(如免费邮箱)
func (s *SearchEngine) Run(ctx context.Context, sess *Session) (Candidate, error) {
	engine := strings.ToLower(sess.Options.SearchEngine)
	if engine == "" {
		engine = models.DefaultSearchEngine
	}
	tmpl, ok := s.endpoints[engine]
	if !ok {
		return Candidate{}, fmt.Errorf("不支持的搜索引擎: %s", engine)
	}

	domain := sess.Target.Domain
	var foreign []string
	for _, q := range SearchQueries(domain) {
		if !HasBudget(ctx) {
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return Candidate{}, err
		}

		searchURL := fmt.Sprintf(tmpl, url.QueryEscape(q))
		emails, err := s.query(ctx, searchURL)
		if err != nil {
			log.Debug().Err(err).Str("engine", engine).Str("query", q).Msg("搜索请求失败")
			continue
		}

		var owned []string
		for _, e := range emails {
			if BelongsToDomain(e, domain) {
				owned = append(owned, e)
			} else {
				foreign = append(foreign, e)
			}
		}
		if best := SelectBest(owned, domain); best != "" {
			return Candidate{Email: best, Source: models.SourceSearchEngine}, nil
		}
	}

	if best := SelectBest(foreign, domain); best != "" {
		log.Debug().Str("engine", engine).Str("domain", domain).Msg("搜索结果中没有本域名邮箱,使用外域邮箱")
		return Candidate{Email: best, Source: models.SourceSearchEngine}, nil
	}
	return Candidate{}, nil
}

// SearchQueries 按顺序执行的搜索查询
func SearchQueries(domain string) []string {
	return []string{
		fmt.Sprintf(`"contact email" site:%s`, domain),
		fmt.Sprintf(`"@%s"`, domain),
		fmt.Sprintf(`"%s" email contact`, domain),
	}
}

// query 抓取一页搜索结果并提取其中的邮箱
func (s *SearchEngine) query(ctx context.Context, searchURL string) ([]string, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if s.userAgent != "" {
		c.UserAgent = s.userAgent
	}
	c.WithTransport(&http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	})

	timeout := searchRequestTimeout
	if r := Remaining(ctx); r < timeout {
		timeout = r
	}
	c.SetRequestTimeout(timeout)

	var extra http.Header
	if s.headers != nil {
		h, err := s.headers.HeadersFor(models.ScopeSearch)
		if err != nil {
			log.Debug().Err(err).Msg("获取搜索引擎请求头失败,使用默认头部")
		}
		extra = h
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		for name, values := range extra {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	var emails []string
	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("script, style, noscript").Remove()
		emails = append(emails, ExtractEmails(e.DOM.Text())...)
		// 结果链接里偶尔直接带mailto
		e.ForEach("a[href^='mailto:']", func(_ int, a *colly.HTMLElement) {
			if email := Normalize(a.Attr("href")); email != "" {
				emails = append(emails, email)
			}
		})
	})

	var statusErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			if mapped := models.StatusError(r.StatusCode); mapped != nil {
				statusErr = fmt.Errorf("%w: 搜索引擎返回 HTTP %d", mapped, r.StatusCode)
				return
			}
		}
		statusErr = err
	})

	err := c.Visit(searchURL)
	if statusErr != nil {
		return nil, statusErr
	}
	if err != nil {
		return nil, err
	}
	return emails, nil
}
