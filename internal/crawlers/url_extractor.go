package crawlers

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// contactKeywords 联系页关键词及得分,多语言
var contactKeywords = map[string]int{
	"contact":    10,
	"kontakt":    10,
	"contacto":   10,
	"contatti":   10,
	"impressum":  9,
	"imprint":    9,
	"mentions":   7,
	"legal":      5,
	"about":      6,
	"ueber-uns":  6,
	"uber-uns":   6,
	"chi-siamo":  6,
	"qui-sommes": 6,
	"team":       4,
	"support":    3,
	"help":       2,
	"company":    2,
}

// skippedExtensions 不会包含联系方式的资源
var skippedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true,
	".pdf": true, ".zip": true, ".rar": true, ".mp4": true, ".mp3": true, ".avi": true,
	".css": true, ".js": true, ".ico": true, ".woff": true, ".woff2": true, ".ttf": true,
	".xml": true, ".json": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
}

// ContactScore 根据URL路径和链接文字计算联系页得分
func ContactScore(linkURL, anchorText string) int {
	haystack := strings.ToLower(linkURL + " " + anchorText)
	score := 0
	for kw, weight := range contactKeywords {
		if strings.Contains(haystack, kw) && weight > score {
			score = weight
		}
	}
	return score
}

// SiteOf 返回主机名的可注册域名(eTLD+1),无法计算时返回去掉www.的主机名
func SiteOf(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// SameSite 两个主机是否属于同一个可注册域名
func SameSite(host, site string) bool {
	return SiteOf(host) == SiteOf(site)
}

// URLExtractor URL提取器
// 职责: 从页面HTML中提取链接,根据站点、深度、资源类型过滤,并打分入队
type URLExtractor struct {
	queue *URLQueue

	// 目标站点(用于跨站检查)
	site string

	maxDepth int
}

// NewURLExtractor 创建URL提取器实例
func NewURLExtractor(queue *URLQueue, site string, maxDepth int) *URLExtractor {
	return &URLExtractor{
		queue:    queue,
		site:     SiteOf(site),
		maxDepth: maxDepth,
	}
}

// ExtractFromHTML 从HTML提取可跟随的链接并加入队列,返回入队数量
func (e *URLExtractor) ExtractFromHTML(htmlContent string, baseURL string, currentDepth int) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return 0, fmt.Errorf("解析HTML失败: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return 0, fmt.Errorf("解析baseURL失败: %w", err)
	}

	// <base href>会改变相对链接的解析基准
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(href); err == nil {
			base = b
		}
	}

	count := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		linkURL, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		linkURL.Fragment = ""
		absoluteURL := linkURL.String()

		if ok, _ := e.ShouldFollowLink(absoluteURL, currentDepth); !ok {
			return
		}

		item := models.URLItem{
			URL:       absoluteURL,
			Depth:     currentDepth + 1,
			Priority:  ContactScore(linkURL.Path, s.Text()),
			SourceURL: baseURL,
		}
		if e.queue.Push(item) == nil {
			count++
		}
	})

	return count, nil
}

// ShouldFollowLink 判断链接是否应该被跟随
func (e *URLExtractor) ShouldFollowLink(linkURL string, currentDepth int) (bool, string) {
	parsedURL, err := url.Parse(linkURL)
	if err != nil {
		return false, "URL格式无效"
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, "不支持的协议"
	}

	if skippedExtensions[strings.ToLower(path.Ext(parsedURL.Path))] {
		return false, "资源文件"
	}

	if e.queue.IsVisited(linkURL) {
		return false, "URL已访问"
	}

	if currentDepth+1 > e.maxDepth {
		return false, "深度超过限制"
	}

	if !SameSite(parsedURL.Hostname(), e.site) {
		log.Debug().Msgf("跨站链接已过滤: %s (目标站点: %s)", linkURL, e.site)
		return false, "跨站链接已过滤"
	}

	return true, ""
}
