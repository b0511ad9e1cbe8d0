// Package camera カメラセンサーからのフレーム取得とJPEGエンコードを担う
//
// # 責務
// - V4L2デバイスからの生フレーム取得（単一バッファ構成）
// - フレームバッファの確実な解放（全ての成功・失敗経路で一度だけ）
// - 生フレームのJPEG圧縮（品質指定付き）
// - デバイスノードの出現・消失の監視
//
// # 仕様
// - バッファ深度は1。未解放のフレームがある間、次の取得はブロックするか失敗する
// - 取得はハードウェアタイムアウト付きの同期操作で、途中キャンセルはできない
// - Frame.Release / EncodedImage.Free は冪等であり、スコープ離脱時に
//   必ず呼ぶことで二重解放とリークを排除する
//
// # 前提要件
//   - V4L2対応カメラデバイス (例: /dev/video0)
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
