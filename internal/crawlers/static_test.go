package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/andybalholm/brotli"
)

type staticHeaders map[string]string

func (h staticHeaders) HeadersFor(models.HeaderScope) (http.Header, error) {
	out := make(http.Header)
	for k, v := range h {
		out.Set(k, v)
	}
	return out, nil
}

func TestStaticFetcherGet(t *testing.T) {
	var seenUA, seenCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUA = r.Header.Get("User-Agent")
		seenCustom = r.Header.Get("X-Trace")

		switch r.URL.Path {
		case "/plain":
			w.Write([]byte("hello"))
		case "/gzip":
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write([]byte("<urlset></urlset>"))
			zw.Close()
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(buf.Bytes())
		case "/br":
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			bw.Write([]byte("brotli body"))
			bw.Close()
			w.Header().Set("Content-Encoding", "br")
			w.Write(buf.Bytes())
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/slow":
			time.Sleep(300 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewStaticFetcher(5*time.Second, "EmailFinderTest/1.0", staticHeaders{"X-Trace": "abc"})

	t.Run("普通响应", func(t *testing.T) {
		res, err := f.Get(context.Background(), srv.URL+"/plain")
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Body) != "hello" || res.StatusCode != 200 {
			t.Errorf("响应异常: %d %q", res.StatusCode, res.Body)
		}
		if seenUA != "EmailFinderTest/1.0" || seenCustom != "abc" {
			t.Errorf("请求头未生效: UA=%q X-Trace=%q", seenUA, seenCustom)
		}
	})

	t.Run("gzip解压", func(t *testing.T) {
		res, err := f.Get(context.Background(), srv.URL+"/gzip")
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Body) != "<urlset></urlset>" {
			t.Errorf("gzip解压结果错误: %q", res.Body)
		}
	})

	t.Run("brotli解压", func(t *testing.T) {
		res, err := f.Get(context.Background(), srv.URL+"/br")
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Body) != "brotli body" {
			t.Errorf("brotli解压结果错误: %q", res.Body)
		}
	})

	t.Run("状态码映射", func(t *testing.T) {
		_, err := f.Get(context.Background(), srv.URL+"/down")
		if !errors.Is(err, models.ErrServerError) {
			t.Errorf("503应映射为ErrServerError, 实际 %v", err)
		}
		_, err = f.Get(context.Background(), srv.URL+"/forbidden")
		if !errors.Is(err, models.ErrBlocked) {
			t.Errorf("403应映射为ErrBlocked, 实际 %v", err)
		}
		_, err = f.Get(context.Background(), srv.URL+"/missing")
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Errorf("404应返回普通错误, 实际 %v", err)
		}
		if models.Classify(err) == models.FaultTransient {
			t.Error("404不应被视为可重试")
		}
	})

	t.Run("ctx超时", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := f.Get(ctx, srv.URL+"/slow")
		if !errors.Is(err, models.ErrNavigationTimeout) {
			t.Errorf("期望ErrNavigationTimeout, 实际 %v", err)
		}
	})
}

func TestDecompressUnknownEncoding(t *testing.T) {
	body, err := decompressResponse("compress", []byte("raw"))
	if err != nil || string(body) != "raw" {
		t.Errorf("未知编码应原样返回, 实际 %q %v", body, err)
	}
	if _, err := decompressResponse("gzip", []byte("not gzip")); err == nil {
		t.Error("损坏的gzip应返回错误")
	}
}

func TestResourceMonitor(t *testing.T) {
	cfg := ResourceMonitorConfig{
		SafetyReserveMemory: 1 << 30,
		ContextMemoryUsage:  100 << 20,
		CPULoadThreshold:    90,
		MaxContextsLimit:    3,
	}

	t.Run("按内存计算上限", func(t *testing.T) {
		rm := NewResourceMonitor(cfg)
		rm.availableMemory = func() (uint64, error) { return (1 << 30) + (200 << 20), nil }
		if got := rm.CalculateMaxContexts(); got != 2 {
			t.Errorf("期望2, 实际 %d", got)
		}
		if got := rm.CapPoolSize(8); got != 2 {
			t.Errorf("期望下调到2, 实际 %d", got)
		}
		if got := rm.CapPoolSize(1); got != 1 {
			t.Errorf("期望保持1, 实际 %d", got)
		}
	})

	t.Run("内存不足时至少为1", func(t *testing.T) {
		rm := NewResourceMonitor(cfg)
		rm.availableMemory = func() (uint64, error) { return 10 << 20, nil }
		if got := rm.CalculateMaxContexts(); got != 1 {
			t.Errorf("期望1, 实际 %d", got)
		}
		if ok, reason := rm.CheckResourceAvailability(); ok || reason == "" {
			t.Error("内存不足时应拒绝")
		}
	})

	t.Run("CPU负载过高", func(t *testing.T) {
		rm := NewResourceMonitor(cfg)
		rm.availableMemory = func() (uint64, error) { return 8 << 30, nil }
		rm.cpuPercent = func() (float64, error) { return 99, nil }
		if ok, _ := rm.CheckResourceAvailability(); ok {
			t.Error("CPU负载过高时应拒绝")
		}
		rm.cpuPercent = func() (float64, error) { return 10, nil }
		if ok, _ := rm.CheckResourceAvailability(); !ok {
			t.Error("资源充足时应允许")
		}
	})
}
