package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	t.Run("文件不存在时返回空配置", func(t *testing.T) {
		loader := NewHeaderConfigLoader(filepath.Join(t.TempDir(), "missing.yaml"))
		cfg, err := loader.LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		if cfg.Headers == nil || len(cfg.Headers) != 0 {
			t.Errorf("期望空的Headers map, 得到 %v", cfg.Headers)
		}
	})

	t.Run("加载已存在的配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		testConfig := `headers:
  User-Agent: "Test Bot/1.0"
  X-Custom: "test value"
search:
  Cookie: "CONSENT=YES+"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("写入测试配置失败: %v", err)
		}

		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		// viper会将键名转换为小写
		if cfg.Headers["user-agent"] != "Test Bot/1.0" {
			t.Errorf("期望 user-agent='Test Bot/1.0', 实际='%s'", cfg.Headers["user-agent"])
		}
		if cfg.Headers["x-custom"] != "test value" {
			t.Errorf("期望 x-custom='test value', 实际='%s'", cfg.Headers["x-custom"])
		}
		if cfg.Search["cookie"] != "CONSENT=YES+" {
			t.Errorf("期望search节 cookie='CONSENT=YES+', 实际='%s'", cfg.Search["cookie"])
		}
		if _, ok := cfg.Headers["cookie"]; ok {
			t.Error("search节的头部不应出现在headers中")
		}
	})

	t.Run("YAML格式错误返回错误", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		badConfig := "headers:\n  User-Agent: \"Test Bot\n  X-Custom: missing quote\n"
		if err := os.WriteFile(configPath, []byte(badConfig), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewHeaderConfigLoader(configPath).LoadConfig(); err == nil {
			t.Fatal("期望返回错误,但成功了")
		}
	})

	t.Run("空配置文件处理", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(configPath, []byte("headers:"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
		if err != nil {
			t.Fatalf("加载空配置失败: %v", err)
		}
		if cfg.Headers == nil || cfg.Search == nil {
			t.Fatal("Headers和Search应该被初始化为空map")
		}
	})

	t.Run("配置文件大小验证", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "huge.yaml")
		huge := strings.Repeat("headers:\n  X-Test: value\n", 50000)
		if err := os.WriteFile(configPath, []byte(huge), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewHeaderConfigLoader(configPath).LoadConfig(); err == nil {
			t.Fatal("期望超大配置文件被拒绝,但成功了")
		}
	})
}

func TestHeaderConfigLoader_WriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "headers.yaml")
	loader := NewHeaderConfigLoader(path)

	created, err := loader.WriteTemplate()
	if err != nil || !created {
		t.Fatalf("应创建模板: created=%v err=%v", created, err)
	}

	cfg, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("模板应可以被加载: %v", err)
	}
	if len(cfg.Headers) != 0 || len(cfg.Search) != 0 {
		t.Errorf("模板默认不应包含生效的头部: %v %v", cfg.Headers, cfg.Search)
	}

	created, err = loader.WriteTemplate()
	if err != nil || created {
		t.Errorf("已存在的文件不应被覆盖: created=%v err=%v", created, err)
	}
}
