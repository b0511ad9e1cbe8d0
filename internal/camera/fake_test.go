package camera

import (
	"errors"
	"testing"
)

// TestFrameLifecycle は取得と解放が1対1で対応することをテストする
func TestFrameLifecycle(t *testing.T) {
	unit := NewFakeUnit(32, 24)

	const iterations = 5
	for i := 0; i < iterations; i++ {
		frame, err := unit.Acquire()
		if err != nil {
			t.Fatalf("取得に失敗しました: %v", err)
		}
		if len(frame.Data) != 32*24*2 {
			t.Errorf("フレームサイズが一致しません: %d", len(frame.Data))
		}
		frame.Release()
	}

	if unit.Acquired() != iterations {
		t.Errorf("取得回数が一致しません: %d", unit.Acquired())
	}
	if unit.Released() != iterations {
		t.Errorf("解放回数が一致しません: %d", unit.Released())
	}
	if unit.Outstanding() {
		t.Error("未解放のフレームが残っています")
	}
}

// TestFrameReleaseIdempotent はReleaseが冪等であることをテストする
func TestFrameReleaseIdempotent(t *testing.T) {
	unit := NewFakeUnit(32, 24)

	frame, err := unit.Acquire()
	if err != nil {
		t.Fatalf("取得に失敗しました: %v", err)
	}

	frame.Release()
	frame.Release() // 2回目は何もしない

	if unit.Released() != 1 {
		t.Errorf("解放は一度だけのはずです: %d", unit.Released())
	}
}

// TestSingleBufferSlot は単一バッファ構成の相互排他をテストする
func TestSingleBufferSlot(t *testing.T) {
	unit := NewFakeUnit(32, 24)

	frame, err := unit.Acquire()
	if err != nil {
		t.Fatalf("取得に失敗しました: %v", err)
	}

	// 未解放のまま2つ目の取得は失敗する
	if _, err := unit.Acquire(); !errors.Is(err, ErrCameraFault) {
		t.Errorf("ErrCameraFaultが期待されましたが: %v", err)
	}

	frame.Release()

	// 解放後は再び取得できる
	frame2, err := unit.Acquire()
	if err != nil {
		t.Fatalf("解放後の取得に失敗しました: %v", err)
	}
	frame2.Release()
}

// TestFakeUnitFaultInjection はエラー注入をテストする
func TestFakeUnitFaultInjection(t *testing.T) {
	unit := NewFakeUnit(32, 24)

	unit.SetFailNext()
	if _, err := unit.Acquire(); !errors.Is(err, ErrCameraFault) {
		t.Errorf("ErrCameraFaultが期待されましたが: %v", err)
	}

	// 注入エラーは1回限り
	frame, err := unit.Acquire()
	if err != nil {
		t.Fatalf("取得に失敗しました: %v", err)
	}
	frame.Release()

	unit.SetFailAfter(1)
	if _, err := unit.Acquire(); !errors.Is(err, ErrCameraFault) {
		t.Errorf("ErrCameraFaultが期待されましたが: %v", err)
	}
}
