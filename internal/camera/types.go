package camera

import (
	"errors"
	"sync"
	"time"
)

// 障害の分類。ハンドラー側はerrors.Isで判別してHTTPステータスに変換する
var (
	// ErrCameraFault はハードウェアタイムアウト内にフレームが届かなかったことを表す
	ErrCameraFault = errors.New("フレーム取得に失敗")

	// ErrEncodeFault はJPEG圧縮の失敗を表す
	ErrEncodeFault = errors.New("JPEGエンコードに失敗")
)

// Frame はセンサードライバーが届けた生の画像バッファ
// 解放されるまでバッファスロットを占有する。システム全体で同時に
// 存在できるFrameは最大1つ（単一バッファ構成）
type Frame struct {
	Data       []byte    // 生ピクセルデータ。Release後に参照してはならない
	Width      int       // 画像幅
	Height     int       // 画像高さ
	FourCC     string    // ピクセルフォーマット (例: YUYV)
	CapturedAt time.Time // 取得時刻

	release func()
	once    sync.Once
}

// Release はバッファスロットをドライバーに返却する
// 冪等であり、2回目以降の呼び出しは何もしない
func (f *Frame) Release() {
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}

// AcquisitionUnit は単一のハードウェアフレームバッファを所有し、
// 生フレームの取得と解放を提供する
type AcquisitionUnit interface {
	// Acquire はフレームが届くかハードウェアタイムアウトが経過するまで
	// ブロックする。途中キャンセルはできない
	Acquire() (*Frame, error)

	// Close はデバイスを閉じてストリーミングを停止する
	Close() error
}
