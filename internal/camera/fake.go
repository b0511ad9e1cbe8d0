package camera

import (
	"fmt"
	"sync"
	"time"
)

// FakeUnit はテスト用のAcquisitionUnit実装
// 合成YUYVフレームを生成し、取得・解放の回数を記録する
type FakeUnit struct {
	mu          sync.Mutex
	width       int
	height      int
	acquired    int
	released    int
	outstanding bool
	failNext    bool
	failAfter   int // 0なら無制限。n回成功した後の取得は失敗する
	closed      bool
}

// NewFakeUnit は指定解像度のFakeUnitを作成する
func NewFakeUnit(width, height int) *FakeUnit {
	return &FakeUnit{width: width, height: height}
}

// Acquire は合成フレームを返す
// 単一バッファ構成を模倣し、未解放のフレームがある間は失敗する
func (u *FakeUnit) Acquire() (*Frame, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil, fmt.Errorf("%w: デバイスは閉じられています", ErrCameraFault)
	}
	if u.outstanding {
		return nil, fmt.Errorf("%w: バッファスロットが解放されていません", ErrCameraFault)
	}
	if u.failNext {
		u.failNext = false
		return nil, fmt.Errorf("%w: テスト用の注入エラー", ErrCameraFault)
	}
	if u.failAfter > 0 && u.acquired >= u.failAfter {
		return nil, fmt.Errorf("%w: テスト用の注入エラー", ErrCameraFault)
	}

	u.acquired++
	u.outstanding = true
	seq := u.acquired

	return &Frame{
		Data:       syntheticYUYV(u.width, u.height, seq),
		Width:      u.width,
		Height:     u.height,
		FourCC:     "YUYV",
		CapturedAt: time.Now(),
		release: func() {
			u.mu.Lock()
			defer u.mu.Unlock()
			u.released++
			u.outstanding = false
		},
	}, nil
}

// Close はデバイスを閉じたことにする
func (u *FakeUnit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	return nil
}

// Acquired は取得に成功した回数を返す
func (u *FakeUnit) Acquired() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.acquired
}

// Released は解放された回数を返す
func (u *FakeUnit) Released() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.released
}

// Outstanding は未解放のフレームが存在するかを返す
func (u *FakeUnit) Outstanding() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.outstanding
}

// SetFailNext は次の取得を失敗させる
func (u *FakeUnit) SetFailNext() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failNext = true
}

// SetFailAfter はn回成功した後の取得を失敗させる
func (u *FakeUnit) SetFailAfter(n int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failAfter = n
}

// syntheticYUYV はフレーム番号に応じて変化するグラデーション画像を生成する
func syntheticYUYV(width, height, seq int) []byte {
	data := make([]byte, width*height*2)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x += 2 {
			base := (y*width + x) * 2
			data[base] = byte((x + y + seq) % 256)   // Y0
			data[base+1] = byte((x * 2) % 256)       // U
			data[base+2] = byte((x + y + seq) % 256) // Y1
			data[base+3] = byte((y * 2) % 256)       // V
		}
	}
	return data
}
