// Package server は顕微鏡カメラ操作の HTTP API を提供します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - /api/microscope 配下のデバイス一覧・撮影・プレビュー・オープン/クローズ
//   - 撮影画像ディレクトリの静的配信（/images）
//   - フロントエンド向けの CORS ヘッダー付与
//
// 仕様:
//   - ルーティングは gin を使用
//   - 撮影系のエラーは {error, message, timestamp} 形式で返す
//   - カメラセッションはプロセスで1つ。リクエストはセッション内で直列化される
package server
