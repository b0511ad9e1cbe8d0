// Package main はmonbanサーバーコマンドの実装です
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"monban/internal/camera"
	"monban/internal/config"
	"monban/internal/device"
	"monban/internal/server"
)

func main() {
	var (
		cfgPath    string
		host       string
		port       int
		devicePath string
	)

	root := &cobra.Command{
		Use:   "monban",
		Short: "ドアロックシステム向けカメラノードのHTTPメディアサーバー",
		Example: "  monban --device /dev/video0 --port 8080\n" +
			"  monban --config /etc/monban/config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 設定の優先順位: フラグ > 設定ファイル > 環境変数 > デフォルト
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cfgPath != "" && config.FileExists(cfgPath) {
				if err := config.ApplyFile(cfg, cfgPath); err != nil {
					return err
				}
			}

			// 明示的に指定されたフラグだけを上書きに使う
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["host"] {
				cfg.Server.Host = host
			}
			if changed["port"] {
				cfg.Server.Port = port
			}
			if changed["device"] {
				cfg.Camera.Device = devicePath
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("設定の検証に失敗: %w", err)
			}

			return run(cfg)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "TOML設定ファイルのパス")
	root.Flags().StringVar(&host, "host", "0.0.0.0", "サーバーのホスト")
	root.Flags().IntVar(&port, "port", 8080, "サーバーのポート")
	root.Flags().StringVar(&devicePath, "device", "/dev/video0", "カメラデバイスのパス")

	if err := root.Execute(); err != nil {
		log.Fatalf("起動に失敗しました: %v", err)
	}
}

// run は依存関係を組み立ててサーバーを起動する
func run(cfg *config.Config) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cam, err := camera.NewV4L2Unit(cfg.Camera, logger)
	if err != nil {
		return fmt.Errorf("カメラの初期化に失敗: %w", err)
	}
	defer cam.Close()

	mon, err := camera.NewMonitor(cfg.Camera.Device, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("デバイス監視を開始できません")
	} else {
		defer mon.Close()
	}

	var actuator device.Actuator
	if gpio, gerr := device.NewGPIOActuator(cfg.LED.GPIO); gerr != nil {
		logger.Warn().Err(gerr).Msg("GPIOが使えないためLEDはメモリ上でのみ管理します")
		actuator = device.NewMemoryActuator()
	} else {
		actuator = gpio
	}
	dev := device.NewState(actuator)

	srv, err := server.New(cfg, cam, camera.NewEncoder(), dev, mon, logger)
	if err != nil {
		return fmt.Errorf("サーバーの作成に失敗: %w", err)
	}

	return srv.Start(context.Background())
}
