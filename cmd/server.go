// Package main は nomisma 顕微鏡サーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"nomisma/internal/config"
	"nomisma/internal/logging"
	"nomisma/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host     = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port     = flag.Int("port", 0, "サーバーのポート (デフォルト: 8000)")
		images   = flag.String("images", "", "撮影画像の保存先ディレクトリ")
		logLevel = flag.String("log-level", "", "ログレベル (debug/info/warn/error)")
		list     = flag.Bool("list", false, "検出したカメラを表示して終了")
		help     = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("nomisma microscope server")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *images != "" {
		cfg.Storage.ImagesPath = *images
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("ロガーの作成に失敗しました: %v", err)
	}
	defer logger.Sync()

	srv, err := server.Build(cfg, logger)
	if err != nil {
		logger.Fatal("サーバーの作成に失敗しました", zap.Error(err))
	}

	// 検出したカメラの一覧表示
	if *list {
		for _, device := range srv.Devices(context.Background()) {
			fmt.Printf("%-16s %-10s available=%-5t %s\n", device.ID, device.Kind, device.Available, device.Name)
		}
		return
	}

	// サーバーを起動
	logger.Info("nomisma サーバーを起動します", zap.String("addr", cfg.ServerAddress()))
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal("サーバーの起動に失敗しました", zap.Error(err))
	}
}
