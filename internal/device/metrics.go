package device

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// procNetWireless は無線統計の取得元
const procNetWireless = "/proc/net/wireless"

// FreeHeap は利用可能なヒープメモリのバイト数を返す
func FreeHeap() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapSys - m.HeapAlloc)
}

// WifiRSSI は無線信号強度(dBm)を返す
// 無線インターフェースが見つからない場合はフォールバック値を返す
func WifiRSSI(fallback int) int {
	b, err := os.ReadFile(procNetWireless)
	if err != nil {
		return fallback
	}
	return parseRSSI(string(b), fallback)
}

// parseRSSI は/proc/net/wirelessの最初のインターフェース行から
// level(dBm)フィールドを取り出す
func parseRSSI(contents string, fallback int) int {
	lines := strings.Split(contents, "\n")
	if len(lines) < 3 {
		return fallback
	}
	// 先頭2行はヘッダー
	for _, line := range lines[2:] {
		fields := strings.Fields(line)
		if len(fields) < 4 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		level := strings.TrimSuffix(fields[3], ".")
		if v, err := strconv.ParseFloat(level, 64); err == nil {
			return int(v)
		}
	}
	return fallback
}
