package main

import (
	"context"
	"log"
	"os"

	"github.com/rs/zerolog"

	"monban/internal/camera"
	"monban/internal/config"
	"monban/internal/device"
	"monban/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// カメラを初期化
	cam, err := camera.NewV4L2Unit(cfg.Camera, logger)
	if err != nil {
		log.Fatalf("カメラの初期化に失敗しました: %v", err)
	}
	defer cam.Close()

	// デバイスノードの監視を開始
	mon, err := camera.NewMonitor(cfg.Camera.Device, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("デバイス監視を開始できません")
	} else {
		defer mon.Close()
	}

	// LEDアクチュエーターを初期化
	// GPIOが使えない環境ではメモリ実装で代替する
	var actuator device.Actuator
	if gpio, gerr := device.NewGPIOActuator(cfg.LED.GPIO); gerr != nil {
		logger.Warn().Err(gerr).Msg("GPIOが使えないためLEDはメモリ上でのみ管理します")
		actuator = device.NewMemoryActuator()
	} else {
		actuator = gpio
	}
	dev := device.NewState(actuator)

	// サーバーを作成
	srv, err := server.New(cfg, cam, camera.NewEncoder(), dev, mon, logger)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
