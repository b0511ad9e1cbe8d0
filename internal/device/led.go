package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Actuator はLEDの点灯・消灯を行う
type Actuator interface {
	// Set はLEDの状態を設定する。効果は同期的に適用される
	Set(on bool) error
}

// GPIOActuator はsysfs経由でGPIOピンを駆動するActuator実装
type GPIOActuator struct {
	pin  int
	path string // value ファイルのパス
}

// NewGPIOActuator はGPIOピンをエクスポートして出力方向に設定する
func NewGPIOActuator(pin int) (*GPIOActuator, error) {
	base := filepath.Join("/sys/class/gpio", fmt.Sprintf("gpio%d", pin))

	// 既にエクスポート済みの場合は再利用する
	if _, err := os.Stat(base); err != nil {
		if err := os.WriteFile("/sys/class/gpio/export", []byte(strconv.Itoa(pin)), 0o644); err != nil {
			return nil, fmt.Errorf("GPIO%dのエクスポートに失敗: %w", pin, err)
		}
	}

	if err := os.WriteFile(filepath.Join(base, "direction"), []byte("out"), 0o644); err != nil {
		return nil, fmt.Errorf("GPIO%dの方向設定に失敗: %w", pin, err)
	}

	return &GPIOActuator{pin: pin, path: filepath.Join(base, "value")}, nil
}

// Set はGPIOのvalueファイルに書き込む
func (a *GPIOActuator) Set(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	if err := os.WriteFile(a.path, []byte(v), 0o644); err != nil {
		return fmt.Errorf("GPIO%dへの書き込みに失敗: %w", a.pin, err)
	}
	return nil
}

// MemoryActuator はテストやGPIOが使えない環境向けのActuator実装
type MemoryActuator struct {
	mu      sync.Mutex
	on      bool
	failSet bool
}

// NewMemoryActuator は新しいMemoryActuatorを作成する
func NewMemoryActuator() *MemoryActuator {
	return &MemoryActuator{}
}

// Set は状態をメモリに記録する
func (a *MemoryActuator) Set(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failSet {
		return errors.New("テスト用の注入エラー")
	}
	a.on = on
	return nil
}

// On は現在の状態を返す
func (a *MemoryActuator) On() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

// SetFail は以降のSetを失敗させる
func (a *MemoryActuator) SetFail(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failSet = fail
}
