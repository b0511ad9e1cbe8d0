package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"monban/internal/camera"
	"monban/internal/config"
	"monban/internal/device"
)

// maxRoutes はハンドラーテーブルの上限
// 現在の4ルートでは使い切らないが、拡張のために予約されている
const maxRoutes = 8

// FrameEncoder は生フレームをJPEGに圧縮する
type FrameEncoder interface {
	Encode(f *camera.Frame, quality int) (*camera.EncodedImage, error)
}

// route は登録済みハンドラーテーブルの1エントリ
type route struct {
	method string
	path   string
}

// Server はHTTPメディアサーバーを管理する構造体
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	routes     []route

	cam camera.AcquisitionUnit
	enc FrameEncoder
	dev *device.State
	mon *camera.Monitor // nilの場合はカメラを常にreadyとして報告する
	log zerolog.Logger
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, cam camera.AcquisitionUnit, enc FrameEncoder, dev *device.State, mon *camera.Monitor, logger zerolog.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		engine: engine,
		cam:    cam,
		enc:    enc,
		dev:    dev,
		mon:    mon,
		log:    logger.With().Str("component", "server").Logger(),
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	return s, nil
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() error {
	// ライブプレビューストリーミング
	if err := s.register(http.MethodGet, "/", s.handleStream); err != nil {
		return err
	}

	// 単発キャプチャ（顔認識パイプライン向け）
	if err := s.register(http.MethodGet, "/capture", s.handleCapture); err != nil {
		return err
	}

	// デバイス状態
	if err := s.register(http.MethodGet, "/status", s.handleStatus); err != nil {
		return err
	}

	// LEDアクチュエーター
	// メソッド違反に404ではなく400を返すため、ガードはハンドラー内で行う
	if err := s.register(http.MethodPost, "/led", s.handleLED); err != nil {
		return err
	}

	return nil
}

// register はハンドラーテーブルにルートを追加する
// テーブルの容量を超えた登録はエラーになる
func (s *Server) register(method, path string, handler gin.HandlerFunc) error {
	if len(s.routes) >= maxRoutes {
		return fmt.Errorf("ハンドラーテーブルが上限に達しています (%d)", maxRoutes)
	}
	s.routes = append(s.routes, route{method: method, path: path})

	if method == http.MethodPost {
		// ハンドラー内のメソッドガードに委ねるため全メソッドを受け付ける
		s.engine.Any(path, handler)
		return nil
	}
	s.engine.Handle(method, path, handler)
	return nil
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.log.Info().Str("addr", s.cfg.ServerAddress()).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.log.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.log.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case err := <-shutdownCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.log.Info().Msg("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.log.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}
