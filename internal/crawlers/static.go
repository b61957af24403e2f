package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/andybalholm/brotli"
)

// maxBodySize 单个响应体的读取上限
const maxBodySize = 5 * 1024 * 1024

// StaticFetcher 不经过浏览器的HTTP抓取器(sitemap、robots等纯文本资源)
type StaticFetcher struct {
	client         *http.Client
	headerProvider models.HeaderProvider
	userAgent      string
}

// NewStaticFetcher 创建HTTP抓取器
// 跳过证书验证,允许访问自签名、过期或主机名不匹配的HTTPS站点
func NewStaticFetcher(timeout time.Duration, userAgent string, headerProvider models.HeaderProvider) *StaticFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StaticFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
				DisableCompression:  true, // 自行处理gzip/deflate/br
				MaxIdleConnsPerHost: 2,
			},
			Timeout: timeout,
		},
		headerProvider: headerProvider,
		userAgent:      userAgent,
	}
}

// FetchResult 抓取结果
type FetchResult struct {
	URL         string // 最终地址(跟随重定向后)
	StatusCode  int
	ContentType string
	Body        []byte
}

// Get 抓取url并解压响应体
// 5xx/429返回ErrServerError,403返回ErrBlocked,其余4xx返回带状态码的普通错误
func (f *StaticFetcher) Get(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidTarget, err)
	}

	if f.headerProvider != nil {
		headers, err := f.headerProvider.HeadersFor(models.ScopeSite)
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			for name, values := range headers {
				if len(values) > 0 {
					req.Header.Set(name, values[0])
				}
			}
		}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError(ctx, err)
	}
	defer resp.Body.Close()

	if statusErr := models.StatusError(resp.StatusCode); statusErr != nil {
		return nil, fmt.Errorf("%w: HTTP %d %s", statusErr, resp.StatusCode, rawURL)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, rawURL)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", models.ErrConnectionReset, err)
	}

	body, err := decompressResponse(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// classifyHTTPError 将传输层错误映射为故障哨兵
func classifyHTTPError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", models.ErrNavigationTimeout, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return fmt.Errorf("%w: %v", models.ErrDNSFailure, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrNavigationTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrConnectionReset, err)
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		// 未知编码,仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
