package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"monban/internal/camera"
)

// マルチパートストリームのワイヤーフォーマット
// 境界トークンはコンパイル時の固定リテラルであり、ネゴシエーションしない
const (
	streamBoundary     = "123456789000000000000987654321"
	streamContentType  = "multipart/x-mixed-replace;boundary=" + streamBoundary
	streamBoundaryLine = "\r\n--" + streamBoundary + "\r\n"
	streamPartHeader   = "Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n"
)

// sessionState はストリーミングセッションの状態
type sessionState int

const (
	stateOpened sessionState = iota
	stateAcquiring
	stateEncoding
	stateSendingHeader
	stateSendingBody
	stateSendingBoundary
	statePacing
	stateClosed
)

// String は状態のログ表記を返す
func (s sessionState) String() string {
	switch s {
	case stateOpened:
		return "opened"
	case stateAcquiring:
		return "acquiring"
	case stateEncoding:
		return "encoding"
	case stateSendingHeader:
		return "sending_header"
	case stateSendingBody:
		return "sending_body"
	case stateSendingBoundary:
		return "sending_boundary"
	case statePacing:
		return "pacing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// streamSession は接続ごとのストリーミング状態
type streamSession struct {
	id         string
	state      sessionState
	iterations int
	bytesSent  int64
	log        zerolog.Logger
}

// handleStream はマルチパートJPEGストリームを配信する
//
// 1反復の流れ: フレーム取得 → エンコード → フレーム解放 →
// パートヘッダー・ボディ・境界の送信 → バッファ解放 → 一定間隔の待機。
// 送信失敗はそのセッションを終了させる（再開は不可、クライアントは
// 新しいGET /で再接続する）。キャンセルは次の送信失敗として受動的に
// 検知され、能動的な中断シグナルはない
func (s *Server) handleStream(c *gin.Context) {
	sess := &streamSession{
		id:    uuid.NewString(),
		state: stateOpened,
	}
	sess.log = s.log.With().Str("session", sess.id).Logger()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", streamContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		// ストリーム型のレスポンスを確立できない場合は即座に中断する
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	sess.log.Info().Msg("ストリーミングセッションを開始")
	interval := s.cfg.Stream.FrameInterval()

	for {
		sess.state = stateAcquiring
		frame, err := s.cam.Acquire()
		if err != nil {
			sess.log.Error().Err(err).Msg("フレーム取得に失敗")
			break
		}

		sess.state = stateEncoding
		img, err := s.enc.Encode(frame, s.cfg.Stream.StreamQuality)
		// バッファスロットはエンコードの成否に関わらず即返却する
		frame.Release()
		if err != nil {
			sess.log.Error().Err(err).Msg("ストリームのエンコードに失敗")
			break
		}

		err = sess.writePart(writer, img)
		// 送信の成否に関わらず次の反復前に必ず解放する
		// 遅いクライアントの背後でバッファが蓄積するのを防ぐ
		img.Free()
		if err != nil {
			sess.log.Debug().Err(err).Stringer("state", sess.state).Msg("送信に失敗したためセッションを終了")
			break
		}
		flusher.Flush()
		sess.iterations++

		// 固定間隔の待機でフレームレートを約5fpsに制限する
		// 実測のネットワーク状況からは導出しない
		sess.state = statePacing
		time.Sleep(interval)
	}

	sess.state = stateClosed
	sess.log.Info().
		Int("iterations", sess.iterations).
		Int64("bytes", sess.bytesSent).
		Msg("ストリーミングセッションを終了")
}

// writePart は1パート（ヘッダー・ボディ・境界）を書き込む
// 最初の書き込み失敗で即座に返る
func (sess *streamSession) writePart(w io.Writer, img *camera.EncodedImage) error {
	sess.state = stateSendingHeader
	n, err := fmt.Fprintf(w, streamPartHeader, img.Len())
	sess.bytesSent += int64(n)
	if err != nil {
		return err
	}

	sess.state = stateSendingBody
	n, err = w.Write(img.Bytes())
	sess.bytesSent += int64(n)
	if err != nil {
		return err
	}

	sess.state = stateSendingBoundary
	n, err = io.WriteString(w, streamBoundaryLine)
	sess.bytesSent += int64(n)
	return err
}
