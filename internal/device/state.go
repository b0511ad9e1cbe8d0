// Package device はプロセス全体のデバイス状態を一箇所に集約する
// LEDフラグや稼働時間などをグローバル変数ではなく明示的に初期化された
// 値として保持し、ハンドラーに注入して使う
package device

import (
	"sync"
	"time"
)

// State はプロセス全体のデバイス状態
type State struct {
	startedAt time.Time
	actuator  Actuator

	mu  sync.Mutex
	led bool
}

// NewState はデバイス状態を初期化する
func NewState(actuator Actuator) *State {
	return &State{
		startedAt: time.Now(),
		actuator:  actuator,
	}
}

// SetLED はアクチュエーターを駆動してからLEDフラグを更新する
// アクチュエーターが失敗した場合、フラグは変更されない
func (s *State) SetLED(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.actuator.Set(on); err != nil {
		return err
	}
	s.led = on
	return nil
}

// LED は現在のLEDフラグを返す
func (s *State) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

// Uptime は初期化からの経過秒数を返す
func (s *State) Uptime() int64 {
	return int64(time.Since(s.startedAt).Seconds())
}
