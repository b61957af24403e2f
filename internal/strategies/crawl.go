package strategies

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// pageNavigateTimeout 站内单页导航的时间上限
	pageNavigateTimeout = 15 * time.Second

	// sitemapTimeout sitemap抓取的时间上限
	sitemapTimeout = 5 * time.Second

	// maxChildSitemaps 最多展开的子sitemap数量
	maxChildSitemaps = 3
)

// Fetcher 抓取纯文本资源(sitemap)
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*crawlers.FetchResult, error)
}

// SiteCrawl 站内爬取: 从落地页链接和sitemap出发,优先访问联系页
type SiteCrawl struct {
	fetcher Fetcher
}

// NewSiteCrawl 创建站内爬取策略,fetcher为nil时不读取sitemap
func NewSiteCrawl(fetcher Fetcher) *SiteCrawl {
	return &SiteCrawl{fetcher: fetcher}
}

func (c *SiteCrawl) Name() models.EmailSource { return models.SourceCrawl }

func (c *SiteCrawl) Enabled(opts models.FindOptions) bool {
	return opts.MaxDepth > 0 && opts.MaxPages > 0
}

// Run 按联系页得分的优先级爬取同站页面,找到第一个可接受邮箱即返回
func (c *SiteCrawl) Run(ctx context.Context, sess *Session) (Candidate, error) {
	opts := sess.Options
	base, err := url.Parse(sess.Target.URL)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", models.ErrInvalidTarget, err)
	}
	site := crawlers.SiteOf(base.Hostname())
	queue := crawlers.NewURLQueue(site, opts.MaxDepth, opts.MaxPages)
	extractor := crawlers.NewURLExtractor(queue, site, opts.MaxDepth)

	landing := sess.LandingURL
	if landing == "" {
		landing = sess.Target.URL
	}
	queue.MarkVisited(landing)
	queue.MarkVisited(sess.Target.URL)

	if sess.LandingHTML != "" {
		if n, err := extractor.ExtractFromHTML(sess.LandingHTML, landing, 0); err == nil {
			log.Debug().Str("domain", sess.Target.Domain).Int("links", n).Msg("落地页链接已入队")
		}
	} else {
		// 落地页扫描未执行: 把落地页本身作为第一个页面
		queue.Reset()
		_ = queue.Push(models.URLItem{URL: sess.Target.URL, Depth: 0, Priority: 1})
	}

	if c.fetcher != nil {
		c.seedFromSitemap(ctx, base, queue)
	}

	for HasBudget(ctx) {
		item, ok := queue.Pop()
		if !ok {
			break
		}

		html, finalURL, err := c.visit(ctx, sess.Browser, item.URL)
		if err != nil {
			if errors.Is(err, models.ErrContextCorrupted) || ctx.Err() != nil {
				return Candidate{}, err
			}
			log.Debug().Err(err).Str("url", item.URL).Msg("站内页面访问失败,跳过")
			continue
		}
		queue.MarkVisited(finalURL)

		candidates, err := ScanHTML(html)
		if err == nil {
			if best := SelectBest(candidates, sess.Target.Domain); best != "" {
				return Candidate{Email: best, Source: models.SourceCrawl, PageURL: finalURL}, nil
			}
		}

		if item.Depth < opts.MaxDepth {
			if _, err := extractor.ExtractFromHTML(html, finalURL, item.Depth); err != nil {
				log.Debug().Err(err).Str("url", finalURL).Msg("提取链接失败")
			}
		}
	}

	log.Debug().
		Str("domain", sess.Target.Domain).
		Int("pages", queue.VisitedPages()).
		Msg("站内爬取未找到邮箱")
	return Candidate{}, nil
}

// visit 在浏览器上下文中打开一个页面,返回渲染后的HTML和最终地址
func (c *SiteCrawl) visit(ctx context.Context, bc crawlers.BrowserContext, pageURL string) (string, string, error) {
	navCtx, cancel := subBudget(ctx, pageNavigateTimeout)
	defer cancel()

	if _, err := bc.Navigate(navCtx, pageURL); err != nil {
		return "", "", err
	}
	html, err := bc.HTML(navCtx)
	if err != nil {
		return "", "", err
	}
	finalURL := bc.URL()
	if finalURL == "" {
		finalURL = pageURL
	}
	return html, finalURL, nil
}

// sitemapURLSet sitemap.xml的<urlset>文档
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

// sitemapIndex sitemap索引文件
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// seedFromSitemap 从sitemap中挑出联系页相关的URL加入队列
// 只有得分大于0的URL会入队,避免大站点的sitemap挤占页面配额
func (c *SiteCrawl) seedFromSitemap(ctx context.Context, base *url.URL, queue *crawlers.URLQueue) {
	sctx, cancel := subBudget(ctx, sitemapTimeout)
	defer cancel()

	root := base.Scheme + "://" + base.Host + "/sitemap.xml"
	locs := c.fetchSitemap(sctx, root, 0)

	seeded := 0
	for _, loc := range locs {
		score := crawlers.ContactScore(loc, "")
		if score == 0 {
			continue
		}
		if queue.Push(models.URLItem{URL: loc, Depth: 1, Priority: score, SourceURL: root}) == nil {
			seeded++
		}
	}
	if seeded > 0 {
		log.Debug().Str("sitemap", root).Int("seeded", seeded).Msg("已从sitemap导入联系页候选")
	}
}

// fetchSitemap 读取sitemap,索引文件展开一层
func (c *SiteCrawl) fetchSitemap(ctx context.Context, sitemapURL string, level int) []string {
	res, err := c.fetcher.Get(ctx, sitemapURL)
	if err != nil {
		log.Debug().Err(err).Str("sitemap", sitemapURL).Msg("sitemap不可用")
		return nil
	}

	var urlSet sitemapURLSet
	if err := xml.Unmarshal(res.Body, &urlSet); err == nil {
		locs := make([]string, 0, len(urlSet.URLs))
		for _, u := range urlSet.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				locs = append(locs, loc)
			}
		}
		return locs
	}

	if level > 0 {
		return nil
	}
	var index sitemapIndex
	if err := xml.Unmarshal(res.Body, &index); err != nil {
		return nil
	}

	var locs []string
	for i, sm := range index.Sitemaps {
		if i >= maxChildSitemaps || ctx.Err() != nil {
			break
		}
		if loc := strings.TrimSpace(sm.Loc); loc != "" {
			locs = append(locs, c.fetchSitemap(ctx, loc, level+1)...)
		}
	}
	return locs
}
