// Package camera 顕微鏡カメラデバイスの検出・オープン・フレーム取得を担う
//
// # 責務
// - video4linux の sysfs ツリーを走査してキャプチャデバイスを列挙する
// - media コントローラノードと video ノードの対応付け（ハードウェアパス比較）
// - キャプチャバックエンドの選択と候補識別子のフォールバック
// - 1プロセス1ハンドルのセッション管理と読み取りリトライ
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 接続されている顕微鏡カメラを一覧表示したい
// - 指定した識別子（パス・番号）で確実にカメラを開きたい
// - 一時的な読み取り失敗を吸収して1フレームを取得したい
//
// # 仕様
// - Enumerator: /sys/class/video4linux と /sys/bus/media/devices を走査する。
//   sysfs が存在しない環境では番号 0..9 を直接試す
// - Selector: ネイティブ(V4L2)バックエンドを優先し、全候補が失敗した場合は
//   汎用バックエンドで同じ候補を再試行する
// - Session: 同時に開くハンドルは最大1つ。Ensure は同一識別子なら何もしない
// - 列挙は決してエラーを返さない。プローブ失敗は Available=false で表す
//
// # 前提要件
//   - OpenCV 4.x（gocv 経由でキャプチャ・画像処理に使用）
//     Ubuntu/Debian: sudo apt install libopencv-dev
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
