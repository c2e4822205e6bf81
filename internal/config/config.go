package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nomisma/internal/camera"
	"nomisma/internal/logging"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数
const ConfigFileEnv = "NOMISMA_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Camera  CameraConfig  `yaml:"camera"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // 終了待ちタイムアウト

	// FrontendURL は CORS で許可するオリジン
	FrontendURL string `yaml:"frontend_url"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	// オープン時に要求するキャプチャ設定
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FourCC     string `yaml:"fourcc"`
	BufferSize int    `yaml:"buffer_size"`

	ReadAttempts     int `yaml:"read_attempts"`      // 1回の撮影での最大読み取り回数
	OpenReadAttempts int `yaml:"open_read_attempts"` // オープン直後の読み取り確認回数

	// バックエンド（空なら自動）
	PreferredBackend string `yaml:"preferred_backend"`
	FallbackBackend  string `yaml:"fallback_backend"`

	// デバイス列挙
	SysfsRoot       string `yaml:"sysfs_root"`
	MediaRoot       string `yaml:"media_root"`
	DevRoot         string `yaml:"dev_root"`
	FallbackIndices int    `yaml:"fallback_indices"` // sysfs がない場合に試す番号の数
}

// StorageConfig は撮影画像の保存先設定
type StorageConfig struct {
	ImagesPath string `yaml:"images_path"` // 画像保存ディレクトリ
	URLPrefix  string `yaml:"url_prefix"`  // 画像配信 URL の接頭辞
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // console / json
}

// Default はデフォルト設定を返す
func Default() *Config {
	settings := camera.DefaultSettings()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			FrontendURL:     "http://localhost:3000",
		},
		Camera: CameraConfig{
			Width:            settings.Width,
			Height:           settings.Height,
			FourCC:           settings.FourCC,
			BufferSize:       settings.BufferSize,
			ReadAttempts:     camera.DefaultReadAttempts,
			OpenReadAttempts: camera.DefaultOpenReadAttempts,
			SysfsRoot:        camera.DefaultSysfsRoot,
			MediaRoot:        camera.DefaultMediaRoot,
			DevRoot:          camera.DefaultDevRoot,
			FallbackIndices:  camera.DefaultFallbackIndices,
		},
		Storage: StorageConfig{
			ImagesPath: "./images",
			URLPrefix:  "/images",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Load は設定を読み込む
// デフォルト値、設定ファイル（NOMISMA_CONFIG）、環境変数の順に上書きする
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// mergeFile は YAML ファイルの値で設定を上書きする
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Server.FrontendURL = getEnvOrDefault("FRONTEND_URL", c.Server.FrontendURL)
	c.Storage.ImagesPath = getEnvOrDefault("IMAGES_PATH", c.Storage.ImagesPath)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("タイムアウトに負の値は指定できません")
	}

	// カメラ設定の検証
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("無効な解像度: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FourCC != "" && len(c.Camera.FourCC) != 4 {
		return fmt.Errorf("FOURCC は4文字である必要があります: %q", c.Camera.FourCC)
	}
	if c.Camera.ReadAttempts < 1 {
		return fmt.Errorf("読み取り回数は1以上である必要があります: %d", c.Camera.ReadAttempts)
	}
	for _, backend := range []string{c.Camera.PreferredBackend, c.Camera.FallbackBackend} {
		switch backend {
		case "", camera.BackendV4L2, camera.BackendAny:
		default:
			return fmt.Errorf("不明なバックエンド: %s", backend)
		}
	}

	// 保存先の検証
	if strings.TrimSpace(c.Storage.ImagesPath) == "" {
		return fmt.Errorf("画像保存先が設定されていません")
	}
	if !strings.HasPrefix(c.Storage.URLPrefix, "/") {
		return fmt.Errorf("URL接頭辞は / で始まる必要があります: %q", c.Storage.URLPrefix)
	}

	// ログ設定の検証
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("不正なログ形式: %s", c.Log.Format)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CaptureSettings はオープン時に適用するキャプチャ設定を返す
func (c *Config) CaptureSettings() camera.Settings {
	return camera.Settings{
		Width:      c.Camera.Width,
		Height:     c.Camera.Height,
		FourCC:     c.Camera.FourCC,
		BufferSize: c.Camera.BufferSize,
	}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
