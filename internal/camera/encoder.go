package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
)

// Encoder は生フレームをJPEGに圧縮する
// ステートレスであり、同一の入力と品質に対して常に同一の出力を返す
type Encoder struct {
	pool sync.Pool // エンコード先バッファの再利用プール
}

// NewEncoder は新しいEncoderを作成する
func NewEncoder() *Encoder {
	return &Encoder{
		pool: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
	}
}

// Encode はフレームを指定品質(0-100)でJPEGに圧縮する
// Frameの解放は呼び出し側の責務。返されたEncodedImageは
// リクエスト経路を抜ける前に必ずFreeすること
func (e *Encoder) Encode(f *Frame, quality int) (*EncodedImage, error) {
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("%w: 無効な品質 %d", ErrEncodeFault, quality)
	}

	img, err := yuyvToImage(f)
	if err != nil {
		return nil, err
	}

	buf := e.pool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		e.pool.Put(buf)
		return nil, fmt.Errorf("%w: %v", ErrEncodeFault, err)
	}

	return &EncodedImage{buf: buf, pool: &e.pool}, nil
}

// EncodedImage はちょうど1つのFrameから生成されたJPEG圧縮バッファ
// 所有権は要求したハンドラーに移り、ハンドラーはリクエスト経路を
// 抜ける前（ストリーミングでは次のループ反復前）にFreeする
type EncodedImage struct {
	buf   *bytes.Buffer
	pool  *sync.Pool
	once  sync.Once
	freed atomic.Bool
}

// Bytes はJPEGバイト列を返す。Free後に参照してはならない
func (i *EncodedImage) Bytes() []byte {
	return i.buf.Bytes()
}

// Len はJPEGバイト列の長さを返す
func (i *EncodedImage) Len() int {
	return i.buf.Len()
}

// Free はバッファをプールに返却する
// 冪等であり、2回目以降の呼び出しは何もしない
func (i *EncodedImage) Free() {
	i.once.Do(func() {
		i.freed.Store(true)
		i.pool.Put(i.buf)
	})
}

// Freed は解放済みかを返す
func (i *EncodedImage) Freed() bool {
	return i.freed.Load()
}

// yuyvToImage はYUYV(4:2:2パック)の生データをimage.YCbCrに変換する
func yuyvToImage(f *Frame) (image.Image, error) {
	if f.FourCC != "YUYV" {
		return nil, fmt.Errorf("%w: サポートされていないフォーマット %s", ErrEncodeFault, f.FourCC)
	}

	need := f.Width * f.Height * 2
	if f.Width <= 0 || f.Height <= 0 || f.Width%2 != 0 || len(f.Data) < need {
		return nil, fmt.Errorf("%w: 不正なフレーム (%dx%d, %dバイト)",
			ErrEncodeFault, f.Width, f.Height, len(f.Data))
	}

	img := image.NewYCbCr(image.Rect(0, 0, f.Width, f.Height), image.YCbCrSubsampleRatio422)

	// YUYVは2ピクセルを [Y0 U Y1 V] の4バイトで格納する
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x += 2 {
			base := (y*f.Width + x) * 2
			img.Y[y*img.YStride+x] = f.Data[base]
			img.Y[y*img.YStride+x+1] = f.Data[base+2]

			ci := y*img.CStride + x/2
			img.Cb[ci] = f.Data[base+1]
			img.Cr[ci] = f.Data[base+3]
		}
	}

	return img, nil
}
