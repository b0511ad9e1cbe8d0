// Package server は、HTTPメディアサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// ライブプレビュー配信と単発キャプチャの処理を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理（固定4ルート、ハンドラーテーブルは上限付き）
//   - GET /capture: 高忠実度の単発キャプチャ（品質90）
//   - GET /: マルチパートJPEGストリーミング（品質60、約5fps）
//   - GET /status: デバイス状態のJSONドキュメント
//   - POST /led: LEDアクチュエーターの制御
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - 1接続につき1ハンドラーが完了（ストリーミングは接続の寿命）まで実行される
//   - ハンドラー障害でプロセスは終了しない。ストリーミングの障害は
//     そのセッションのみを終了させる
//   - グレースフルシャットダウンに対応
package server
