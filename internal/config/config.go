package config

import (
	"fmt"
	"os"
	"time"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `toml:"server"`
	Camera CameraConfig `toml:"camera"`
	Stream StreamConfig `toml:"stream"`
	LED    LEDConfig    `toml:"led"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `toml:"host"` // リッスンするホスト
	Port int    `toml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `toml:"-"` // 読み込みタイムアウト
	WriteTimeout time.Duration `toml:"-"` // 書き込みタイムアウト
}

// CameraConfig はカメラセンサーの設定
// プロセス起動時に一度だけ適用され、以降は変更されない
type CameraConfig struct {
	Device string `toml:"device"` // デバイスパス (例: /dev/video0)
	Width  int    `toml:"width"`  // 画像幅
	Height int    `toml:"height"` // 画像高さ
	FourCC string `toml:"fourcc"` // ピクセルフォーマット (例: YUYV)

	// ハードウェア取得タイムアウト（秒）
	// この時間内にフレームが届かなければ取得は失敗する
	AcquireTimeoutSec int `toml:"acquire_timeout_sec"`

	Tuning TuningConfig `toml:"tuning"`
}

// TuningConfig はセンサーの画質調整値
// 負の値はドライバーのデフォルトを維持する
type TuningConfig struct {
	Brightness       int  `toml:"brightness"` // 明度
	Contrast         int  `toml:"contrast"`   // コントラスト
	Saturation       int  `toml:"saturation"` // 彩度
	Sharpness        int  `toml:"sharpness"`  // シャープネス
	Exposure         int  `toml:"exposure"`   // 露出（絶対値）
	AutoWhiteBalance bool `toml:"auto_white_balance"`
}

// StreamConfig は配信とキャプチャの品質設定
type StreamConfig struct {
	// JPEG品質 (0-100)。キャプチャは後段の顔認識向けに忠実度を、
	// ストリーミングは帯域と遅延を優先する
	CaptureQuality int `toml:"capture_quality"`
	StreamQuality  int `toml:"stream_quality"`

	// フレーム間隔（ミリ秒）。ネットワーク状況から導出しない固定値
	FrameIntervalMS int `toml:"frame_interval_ms"`
}

// FrameInterval はストリーミングのフレーム間隔を返す
func (s StreamConfig) FrameInterval() time.Duration {
	return time.Duration(s.FrameIntervalMS) * time.Millisecond
}

// LEDConfig はLEDアクチュエーターの設定
type LEDConfig struct {
	GPIO int `toml:"gpio"` // GPIO番号
}

// Load は環境変数とデフォルト値から設定を読み込む
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			Device:            getEnvOrDefault("CAMERA_DEVICE", "/dev/video0"),
			Width:             getEnvAsIntOrDefault("CAMERA_WIDTH", 640),
			Height:            getEnvAsIntOrDefault("CAMERA_HEIGHT", 480),
			FourCC:            getEnvOrDefault("CAMERA_FOURCC", "YUYV"),
			AcquireTimeoutSec: getEnvAsIntOrDefault("CAMERA_TIMEOUT", 5),
			Tuning: TuningConfig{
				Brightness:       getEnvAsIntOrDefault("CAMERA_BRIGHTNESS", -1),
				Contrast:         getEnvAsIntOrDefault("CAMERA_CONTRAST", -1),
				Saturation:       getEnvAsIntOrDefault("CAMERA_SATURATION", -1),
				Sharpness:        getEnvAsIntOrDefault("CAMERA_SHARPNESS", -1),
				Exposure:         getEnvAsIntOrDefault("CAMERA_EXPOSURE", -1),
				AutoWhiteBalance: true,
			},
		},
		Stream: StreamConfig{
			CaptureQuality:  90,
			StreamQuality:   60,
			FrameIntervalMS: 200, // 約5fpsに制限
		},
		LED: LEDConfig{
			GPIO: getEnvAsIntOrDefault("LED_GPIO", 4),
		},
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	if c.Camera.Device == "" {
		return fmt.Errorf("カメラデバイスが指定されていません")
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("無効な解像度: %dx%d", c.Camera.Width, c.Camera.Height)
	}

	// YUYVは2ピクセル単位で格納されるため幅は偶数でなければならない
	if c.Camera.Width%2 != 0 {
		return fmt.Errorf("画像幅は偶数でなければなりません: %d", c.Camera.Width)
	}

	if len(c.Camera.FourCC) != 4 {
		return fmt.Errorf("無効なピクセルフォーマット: %q", c.Camera.FourCC)
	}

	if c.Camera.AcquireTimeoutSec <= 0 {
		return fmt.Errorf("無効な取得タイムアウト: %d", c.Camera.AcquireTimeoutSec)
	}

	for _, q := range []int{c.Stream.CaptureQuality, c.Stream.StreamQuality} {
		if q < 0 || q > 100 {
			return fmt.Errorf("無効なJPEG品質: %d", q)
		}
	}

	if c.Stream.FrameIntervalMS <= 0 {
		return fmt.Errorf("無効なフレーム間隔: %dms", c.Stream.FrameIntervalMS)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
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
