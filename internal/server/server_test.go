package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"monban/internal/camera"
	"monban/internal/config"
	"monban/internal/device"
)

// testConfig はテスト用の設定を作成する
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 0
	cfg.Camera.Device = "/dev/video0"
	cfg.Camera.Width = 32
	cfg.Camera.Height = 24
	cfg.Camera.FourCC = "YUYV"
	cfg.Camera.AcquireTimeoutSec = 1
	cfg.Stream.CaptureQuality = 90
	cfg.Stream.StreamQuality = 60
	cfg.Stream.FrameIntervalMS = 5 // テストでは待機を短縮する
	cfg.LED.GPIO = 4
	return cfg
}

// newTestServer はフェイクカメラとメモリLEDでサーバーを組み立てる
func newTestServer(t *testing.T, unit camera.AcquisitionUnit, enc FrameEncoder, actuator *device.MemoryActuator) *Server {
	t.Helper()

	srv, err := New(testConfig(), unit, enc, device.NewState(actuator), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("サーバーの作成に失敗しました: %v", err)
	}
	return srv
}

// faultyEncoder は常にエンコードに失敗するFrameEncoder
type faultyEncoder struct{}

func (faultyEncoder) Encode(*camera.Frame, int) (*camera.EncodedImage, error) {
	return nil, camera.ErrEncodeFault
}

// TestCaptureReturnsExactJPEG はキャプチャ応答の長さと内容をテストする
func TestCaptureReturnsExactJPEG(t *testing.T) {
	fake := camera.NewFakeUnit(32, 24)
	srv := newTestServer(t, fake, camera.NewEncoder(), device.NewMemoryActuator())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/capture", nil)
	srv.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("予期しないContent-Type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "inline; filename=capture.jpg" {
		t.Errorf("予期しないContent-Disposition: %s", cd)
	}
	if ao := w.Header().Get("Access-Control-Allow-Origin"); ao != "*" {
		t.Errorf("予期しないAccess-Control-Allow-Origin: %s", ao)
	}

	// 宣言された長さとボディの長さが一致する
	if cl := w.Header().Get("Content-Length"); cl != strconv.Itoa(w.Body.Len()) {
		t.Errorf("Content-Lengthがボディと一致しません: %s != %d", cl, w.Body.Len())
	}

	if _, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("ボディが有効なJPEGではありません: %v", err)
	}

	// フレームは取得され、かつ解放されている
	if fake.Acquired() != 1 || fake.Released() != 1 {
		t.Errorf("フレームのライフサイクルが不正です: acquired=%d released=%d",
			fake.Acquired(), fake.Released())
	}
}

// TestCaptureCameraFault はカメラ障害時の応答をテストする
func TestCaptureCameraFault(t *testing.T) {
	fake := camera.NewFakeUnit(32, 24)
	fake.SetFailNext()
	srv := newTestServer(t, fake, camera.NewEncoder(), device.NewMemoryActuator())

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/capture", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("予期しないステータスコード: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Camera capture failed") {
		t.Errorf("診断メッセージがありません: %q", w.Body.String())
	}
}

// TestCaptureEncodeFault はエンコード障害時もフレームが解放されることをテストする
func TestCaptureEncodeFault(t *testing.T) {
	fake := camera.NewFakeUnit(32, 24)
	srv := newTestServer(t, fake, faultyEncoder{}, device.NewMemoryActuator())

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/capture", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("予期しないステータスコード: %d", w.Code)
	}

	// エラー経路でもフレームは解放されている
	if fake.Released() != 1 {
		t.Errorf("エラー経路でフレームが解放されていません: released=%d", fake.Released())
	}
}

// TestStatusDocument は/statusの固定形状JSONをテストする
func TestStatusDocument(t *testing.T) {
	srv := newTestServer(t, camera.NewFakeUnit(32, 24), camera.NewEncoder(), device.NewMemoryActuator())

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: %d", w.Code)
	}

	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("JSONの解析に失敗しました: %v", err)
	}

	for _, key := range []string{"status", "free_heap", "uptime", "wifi_rssi", "camera"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("キーがありません: %s", key)
		}
	}

	if doc["status"] != "online" {
		t.Errorf("予期しないstatus: %v", doc["status"])
	}
	// 監視なしの構成ではカメラは常にready
	if doc["camera"] != "ready" {
		t.Errorf("予期しないcamera: %v", doc["camera"])
	}
}

// TestLEDControl はLED制御の部分文字列判定をテストする
// ボディのどこかに"true"が含まれる場合のみ点灯する（意図的に素朴な判定）
func TestLEDControl(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		wantOn bool
	}{
		{"trueのみ", "true", true},
		{"JSONの値として含む", `{"led":true}`, true},
		{"無関係な語の一部として含む", `{"note":"truely broken"}`, true},
		{"false", "false", false},
		{"空ボディ", "", false},
		{"無関係なテキスト", "turn the light on", false},
		{"大文字は一致しない", "TRUE", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actuator := device.NewMemoryActuator()
			srv := newTestServer(t, camera.NewFakeUnit(32, 24), camera.NewEncoder(), actuator)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/led", strings.NewReader(tc.body))
			srv.engine.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("予期しないステータスコード: %d", w.Code)
			}
			if w.Body.String() != `{"success":true}` {
				t.Errorf("予期しないボディ: %q", w.Body.String())
			}
			if actuator.On() != tc.wantOn {
				t.Errorf("LED状態が一致しません: got %v, want %v", actuator.On(), tc.wantOn)
			}
		})
	}
}

// TestLEDWrongMethod はPOST以外のメソッドで400を返し状態を変えないことをテストする
func TestLEDWrongMethod(t *testing.T) {
	actuator := device.NewMemoryActuator()
	srv := newTestServer(t, camera.NewFakeUnit(32, 24), camera.NewEncoder(), actuator)

	// まずPOSTで点灯させる
	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/led", strings.NewReader("true")))
	if w.Code != http.StatusOK {
		t.Fatalf("前提条件の設定に失敗しました: %d", w.Code)
	}

	// GETは400で拒否され、状態は変わらない
	w = httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/led", strings.NewReader("false")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("予期しないステータスコード: %d", w.Code)
	}
	if w.Body.String() != "Bad Request" {
		t.Errorf("予期しないボディ: %q", w.Body.String())
	}
	if !actuator.On() {
		t.Error("拒否されたリクエストでLED状態が変更されています")
	}
}

// TestLEDOversizedBody は上限を超えるボディで400を返すことをテストする
func TestLEDOversizedBody(t *testing.T) {
	actuator := device.NewMemoryActuator()
	srv := newTestServer(t, camera.NewFakeUnit(32, 24), camera.NewEncoder(), actuator)

	body := strings.Repeat("a", maxLEDBody+1)
	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/led", strings.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("予期しないステータスコード: %d", w.Code)
	}
	if actuator.On() {
		t.Error("拒否されたリクエストでLED状態が変更されています")
	}
}

// TestLEDActuatorFault はアクチュエーター障害時の応答をテストする
func TestLEDActuatorFault(t *testing.T) {
	actuator := device.NewMemoryActuator()
	actuator.SetFail(true)
	srv := newTestServer(t, camera.NewFakeUnit(32, 24), camera.NewEncoder(), actuator)

	w := httptest.NewRecorder()
	srv.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/led", strings.NewReader("true")))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("予期しないステータスコード: %d", w.Code)
	}
}

// TestHandlerTableBounded はハンドラーテーブルの上限をテストする
func TestHandlerTableBounded(t *testing.T) {
	srv := newTestServer(t, camera.NewFakeUnit(32, 24), camera.NewEncoder(), device.NewMemoryActuator())

	noop := func(*gin.Context) {}

	// 既に4ルートが登録済みなので、上限まであと4つ登録できる
	for i := 0; len(srv.routes) < maxRoutes; i++ {
		if err := srv.register(http.MethodGet, fmt.Sprintf("/x%d", i), noop); err != nil {
			t.Fatalf("上限内の登録に失敗しました: %v", err)
		}
	}

	if err := srv.register(http.MethodGet, "/overflow", noop); err == nil {
		t.Error("上限を超えた登録が成功してしまいました")
	}
}
