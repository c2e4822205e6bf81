package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nomisma/internal/config"
	"nomisma/internal/logging"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	microscope Microscope
	logger     *zap.Logger
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, microscope Microscope, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:     cfg,
		microscope: microscope,
		logger:     logger,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Router はルートを設定した gin エンジンを返す
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(s.logger))
	router.Use(corsMiddleware(s.config.Server.FrontendURL))

	handler := &MicroscopeHandler{
		config:     s.config,
		microscope: s.microscope,
		logger:     s.logger,
	}

	// ヘルスチェック・ステータス
	router.GET("/", handler.Root)
	router.GET("/health", handler.HealthCheck)
	router.GET("/api/status", handler.GetStatus)

	// 顕微鏡 API
	api := router.Group("/api/microscope")
	{
		api.GET("/devices", handler.ListDevices)
		api.POST("/capture", handler.Capture)
		api.GET("/preview", handler.Preview)
		api.POST("/camera/:camera_index/open", handler.OpenCamera)
		api.POST("/camera/close", handler.CloseCamera)
	}

	// 撮影画像の配信
	router.Static(s.config.Storage.URLPrefix, s.config.Storage.ImagesPath)

	return router
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("HTTPサーバーを起動しています", zap.String("addr", s.config.ServerAddress()))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", zap.Stringer("signal", sig))
	case err := <-shutdownCh:
		s.microscope.Close()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンし、カメラを解放する
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)

	// 処理中のリクエストが終わってからカメラを解放する
	s.microscope.Close()

	if err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
