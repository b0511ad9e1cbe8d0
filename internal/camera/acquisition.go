package camera

import (
	"fmt"
	"time"

	"github.com/blackjack/webcam"
	"github.com/rs/zerolog"

	"monban/internal/config"
)

// V4L2の標準コントロールID
// https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/control.html
const (
	ctrlBrightness       webcam.ControlID = 0x00980900
	ctrlContrast         webcam.ControlID = 0x00980901
	ctrlSaturation       webcam.ControlID = 0x00980902
	ctrlSharpness        webcam.ControlID = 0x0098091b
	ctrlExposureAbsolute webcam.ControlID = 0x009a0902
)

// V4L2Unit はV4L2デバイスの単一フレームバッファを管理する
// バッファ深度1で動作し、未解放のフレームがある間は次の取得をブロックする
type V4L2Unit struct {
	cam     *webcam.Webcam
	timeout uint32 // ハードウェア取得タイムアウト（秒）
	width   int
	height  int
	fourcc  string
	log     zerolog.Logger

	// 単一バッファスロットのトークン。取得時に取り出し、解放時に戻す
	slot chan struct{}
}

// NewV4L2Unit はデバイスを開き、フォーマットと画質調整を適用して
// ストリーミングを開始する
func NewV4L2Unit(cfg config.CameraConfig, logger zerolog.Logger) (*V4L2Unit, error) {
	cam, err := webcam.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("デバイスを開けません %s: %w", cfg.Device, err)
	}

	pf, err := fourCCToPixelFormat(cfg.FourCC)
	if err != nil {
		_ = cam.Close()
		return nil, err
	}

	if _, ok := cam.GetSupportedFormats()[pf]; !ok {
		_ = cam.Close()
		return nil, fmt.Errorf("%s: サポートされていないフォーマット: %s", cfg.Device, cfg.FourCC)
	}

	_, w, h, err := cam.SetImageFormat(pf, uint32(cfg.Width), uint32(cfg.Height))
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("フォーマット設定に失敗: %w", err)
	}

	// 単一バッファ構成。メモリ制約下での意図的な設定であり、
	// 取得の相互排他はこのバッファ深度によって成立する
	if err := cam.SetBufferCount(1); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("バッファ数の設定に失敗: %w", err)
	}

	u := &V4L2Unit{
		cam:     cam,
		timeout: uint32(cfg.AcquireTimeoutSec),
		width:   int(w),
		height:  int(h),
		fourcc:  cfg.FourCC,
		log:     logger.With().Str("component", "camera").Logger(),
		slot:    make(chan struct{}, 1),
	}
	u.slot <- struct{}{}

	u.applyTuning(cfg.Tuning)

	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("ストリーミング開始に失敗: %w", err)
	}

	u.log.Info().
		Str("device", cfg.Device).
		Int("width", u.width).
		Int("height", u.height).
		Str("fourcc", cfg.FourCC).
		Msg("カメラを初期化しました")

	return u, nil
}

// applyTuning はセンサーの画質調整値を適用する
// 負の値はドライバーのデフォルトを維持する。失敗しても致命傷にはしない
func (u *V4L2Unit) applyTuning(t config.TuningConfig) {
	controls := []struct {
		name  string
		id    webcam.ControlID
		value int
	}{
		{"brightness", ctrlBrightness, t.Brightness},
		{"contrast", ctrlContrast, t.Contrast},
		{"saturation", ctrlSaturation, t.Saturation},
		{"sharpness", ctrlSharpness, t.Sharpness},
		{"exposure", ctrlExposureAbsolute, t.Exposure},
	}

	for _, c := range controls {
		if c.value < 0 {
			continue
		}
		if err := u.cam.SetControl(c.id, int32(c.value)); err != nil {
			u.log.Warn().Err(err).Str("control", c.name).Msg("コントロール設定に失敗")
		}
	}

	if err := u.cam.SetAutoWhiteBalance(t.AutoWhiteBalance); err != nil {
		u.log.Warn().Err(err).Str("control", "auto_white_balance").Msg("コントロール設定に失敗")
	}
}

// Acquire はフレームが届くかハードウェアタイムアウトが経過するまでブロックする
// 返されたFrameのDataはmmapされたバッファを指しており、Releaseするまで有効
func (u *V4L2Unit) Acquire() (*Frame, error) {
	// 先行するフレームが未解放の間はスロットが空くのを待つ
	select {
	case <-u.slot:
	case <-time.After(time.Duration(u.timeout) * time.Second):
		return nil, fmt.Errorf("%w: バッファスロットが解放されません", ErrCameraFault)
	}

	err := u.cam.WaitForFrame(u.timeout)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		u.slot <- struct{}{}
		return nil, fmt.Errorf("%w: %ds以内にフレームが届きませんでした", ErrCameraFault, u.timeout)
	default:
		u.slot <- struct{}{}
		return nil, fmt.Errorf("%w: %v", ErrCameraFault, err)
	}

	data, index, err := u.cam.GetFrame()
	if err != nil {
		u.slot <- struct{}{}
		return nil, fmt.Errorf("%w: %v", ErrCameraFault, err)
	}

	return &Frame{
		Data:       data,
		Width:      u.width,
		Height:     u.height,
		FourCC:     u.fourcc,
		CapturedAt: time.Now(),
		release: func() {
			if err := u.cam.ReleaseFrame(index); err != nil {
				u.log.Warn().Err(err).Msg("フレームバッファの返却に失敗")
			}
			u.slot <- struct{}{}
		},
	}, nil
}

// Close はストリーミングを停止してデバイスを閉じる
func (u *V4L2Unit) Close() error {
	if err := u.cam.StopStreaming(); err != nil {
		u.log.Warn().Err(err).Msg("ストリーミング停止に失敗")
	}
	return u.cam.Close()
}

// fourCCToPixelFormat は4文字コードをV4L2のピクセルフォーマット値に変換する
func fourCCToPixelFormat(s string) (webcam.PixelFormat, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("無効なピクセルフォーマット: %q", s)
	}
	return webcam.PixelFormat(uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24), nil
}
