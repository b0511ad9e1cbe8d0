package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"monban/internal/device"
)

// maxLEDBody はLED制御リクエストボディの上限バイト数
const maxLEDBody = 1024

// wifiRSSIFallback は無線統計が取得できない場合に報告する信号強度
const wifiRSSIFallback = -127

// statusResponse は/statusの固定形状ドキュメント
type statusResponse struct {
	Status   string `json:"status"`
	FreeHeap int64  `json:"free_heap"`
	Uptime   int64  `json:"uptime"`
	WifiRSSI int    `json:"wifi_rssi"`
	Camera   string `json:"camera"`
}

// handleCapture は単発の高忠実度キャプチャを処理する
// フレームとエンコード済みバッファは全ての経路で必ず解放される
func (s *Server) handleCapture(c *gin.Context) {
	frame, err := s.cam.Acquire()
	if err != nil {
		s.log.Error().Err(err).Msg("キャプチャ用フレームの取得に失敗")
		c.String(http.StatusInternalServerError, "Camera capture failed")
		return
	}

	img, err := s.enc.Encode(frame, s.cfg.Stream.CaptureQuality)
	// バッファスロットはエンコードの成否に関わらず即返却する
	frame.Release()
	if err != nil {
		s.log.Error().Err(err).Msg("キャプチャのエンコードに失敗")
		c.String(http.StatusInternalServerError, "JPEG compression failed")
		return
	}
	defer img.Free()

	c.Header("Content-Disposition", "inline; filename=capture.jpg")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Content-Length", strconv.Itoa(img.Len()))
	c.Data(http.StatusOK, "image/jpeg", img.Bytes())
}

// handleStatus はデバイス状態の固定形状JSONを返す
// 読み取り専用で副作用はなく、到達可能であれば常に200を返す
func (s *Server) handleStatus(c *gin.Context) {
	cameraState := "ready"
	if s.mon != nil && !s.mon.Ready() {
		cameraState = "offline"
	}

	c.JSON(http.StatusOK, statusResponse{
		Status:   "online",
		FreeHeap: device.FreeHeap(),
		Uptime:   s.dev.Uptime(),
		WifiRSSI: device.WifiRSSI(wifiRSSIFallback),
		Camera:   cameraState,
	})
}

// handleLED はLEDアクチュエーターを制御する
// ボディのどこかに部分文字列"true"が含まれる場合のみ点灯する。
// これは意図的に素朴な判定であり、無関係なJSONに含まれる"true"にも
// 反応する既知の簡略化（バグではない）
func (s *Server) handleLED(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLEDBody+1))
	if err != nil || len(body) > maxLEDBody {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	on := strings.Contains(string(body), "true")
	if err := s.dev.SetLED(on); err != nil {
		s.log.Error().Err(err).Bool("on", on).Msg("LEDの制御に失敗")
		c.String(http.StatusInternalServerError, "LED control failed")
		return
	}

	s.log.Debug().Bool("on", on).Msg("LEDを設定しました")
	c.Data(http.StatusOK, "application/json", []byte(`{"success":true}`))
}
