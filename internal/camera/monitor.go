package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Monitor はデバイスノードの出現・消失を監視し、カメラの準備状態を保持する
// /statusエンドポイントのcameraフィールドの情報源となる
type Monitor struct {
	device  string
	watcher *fsnotify.Watcher
	ready   atomic.Bool
	log     zerolog.Logger
	done    chan struct{}
}

// NewMonitor はデバイスノードの親ディレクトリの監視を開始する
func NewMonitor(device string, logger zerolog.Logger) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("監視の初期化に失敗: %w", err)
	}

	if err := watcher.Add(filepath.Dir(device)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("監視対象の追加に失敗 %s: %w", filepath.Dir(device), err)
	}

	m := &Monitor{
		device:  device,
		watcher: watcher,
		log:     logger.With().Str("component", "monitor").Logger(),
		done:    make(chan struct{}),
	}

	_, err = os.Stat(device)
	m.ready.Store(err == nil)

	go m.run()

	return m, nil
}

// run はファイルシステムイベントを処理する
func (m *Monitor) run() {
	for {
		select {
		case <-m.done:
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Name != m.device {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				m.ready.Store(true)
				m.log.Info().Str("device", m.device).Msg("カメラデバイスを検出しました")
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				m.ready.Store(false)
				m.log.Warn().Str("device", m.device).Msg("カメラデバイスが切断されました")
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn().Err(err).Msg("デバイス監視エラー")
		}
	}
}

// Ready はデバイスノードが存在するかを返す
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// Close は監視を停止する
func (m *Monitor) Close() error {
	close(m.done)
	return m.watcher.Close()
}
