package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv はテストに影響する環境変数を空にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{ConfigFileEnv, "SERVER_HOST", "PORT", "IMAGES_PATH", "LOG_LEVEL", "LOG_FORMAT", "FRONTEND_URL"} {
		t.Setenv(key, "")
	}
}

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("デフォルトポートが一致しません: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}

	// カメラ設定の検証
	settings := cfg.CaptureSettings()
	if settings.Width != 1920 || settings.Height != 1080 || settings.FourCC != "MJPG" || settings.BufferSize != 1 {
		t.Errorf("デフォルトのキャプチャ設定が一致しません: %+v", settings)
	}
	if cfg.Camera.ReadAttempts != 5 {
		t.Errorf("読み取り回数のデフォルトが一致しません: %d", cfg.Camera.ReadAttempts)
	}
	if cfg.Camera.FallbackIndices != 10 {
		t.Errorf("探索する番号数のデフォルトが一致しません: %d", cfg.Camera.FallbackIndices)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{"正常な設定", func(c *Config) {}, false},
		{"無効なポート番号", func(c *Config) { c.Server.Port = 99999 }, true},
		{"負のタイムアウト", func(c *Config) { c.Server.WriteTimeout = -time.Second }, true},
		{"無効な解像度", func(c *Config) { c.Camera.Width = 0 }, true},
		{"FOURCC の長さ", func(c *Config) { c.Camera.FourCC = "MJPEG" }, true},
		{"FOURCC 省略", func(c *Config) { c.Camera.FourCC = "" }, false},
		{"読み取り回数0", func(c *Config) { c.Camera.ReadAttempts = 0 }, true},
		{"不明なバックエンド", func(c *Config) { c.Camera.PreferredBackend = "dshow" }, true},
		{"v4l2 バックエンド", func(c *Config) { c.Camera.PreferredBackend = "v4l2" }, false},
		{"画像保存先なし", func(c *Config) { c.Storage.ImagesPath = " " }, true},
		{"URL接頭辞", func(c *Config) { c.Storage.URLPrefix = "images" }, true},
		{"不正なログレベル", func(c *Config) { c.Log.Level = "loud" }, true},
		{"不正なログ形式", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("IMAGES_PATH", "/var/lib/nomisma")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("FRONTEND_URL", "http://coins.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.ImagesPath != "/var/lib/nomisma" {
		t.Errorf("画像保存先が反映されていません: %s", cfg.Storage.ImagesPath)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("ログ設定が反映されていません: %+v", cfg.Log)
	}
	if cfg.Server.FrontendURL != "http://coins.local" {
		t.Errorf("フロントエンドURLが反映されていません: %s", cfg.Server.FrontendURL)
	}
}

// TestConfigFile は設定ファイルと環境変数の優先順位をテストする
func TestConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nomisma.yaml")
	content := `
server:
  port: 8100
  write_timeout: 45s
camera:
  width: 1280
  height: 720
  preferred_backend: any
  sysfs_root: /tmp/sysfs
storage:
  images_path: /data/images
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("PORT", "8200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 環境変数はファイルより優先される
	if cfg.Server.Port != 8200 {
		t.Errorf("環境変数が優先されていません: %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("タイムアウトが反映されていません: %v", cfg.Server.WriteTimeout)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("解像度が反映されていません: %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	// ファイルで指定していない値はデフォルトのまま
	if cfg.Camera.FourCC != "MJPG" {
		t.Errorf("FOURCC はデフォルトのままであるべき: %s", cfg.Camera.FourCC)
	}
	if cfg.Camera.PreferredBackend != "any" || cfg.Camera.SysfsRoot != "/tmp/sysfs" {
		t.Errorf("カメラ設定が反映されていません: %+v", cfg.Camera)
	}
	if cfg.Storage.ImagesPath != "/data/images" {
		t.Errorf("画像保存先が反映されていません: %s", cfg.Storage.ImagesPath)
	}
}

// TestConfigFileErrors は設定ファイルの読み込みエラーをテストする
func TestConfigFileErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("存在しないファイルはエラーになるべき")
	}

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(broken, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(ConfigFileEnv, broken)
	if _, err := Load(); err == nil {
		t.Error("不正なYAMLはエラーになるべき")
	}
}
