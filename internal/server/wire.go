package server

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"nomisma/internal/camera"
	"nomisma/internal/capture"
	"nomisma/internal/config"
	"nomisma/internal/side"
	"nomisma/internal/storage"
)

// Build は設定から実機用のカメラ・撮影サービスを組み立ててサーバーを作成する
func Build(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 画像保存先（静的配信のため起動時に作成しておく）
	if err := os.MkdirAll(cfg.Storage.ImagesPath, 0755); err != nil {
		return nil, fmt.Errorf("画像保存先の作成に失敗: %w", err)
	}

	registry := camera.DefaultBackendRegistry()
	selector := camera.NewSelector(registry, camera.SelectorOptions{
		Preferred:        cfg.Camera.PreferredBackend,
		Fallback:         cfg.Camera.FallbackBackend,
		OpenReadAttempts: cfg.Camera.OpenReadAttempts,
		Logger:           logger.Named("selector"),
	})

	session := camera.NewSession(selector, cfg.CaptureSettings(), cfg.Camera.ReadAttempts, logger.Named("session"))

	// 列挙はプローブに Selector を使い、Selector はコントローラ解決に列挙結果を使う
	// 使用中のデバイスはセッションのハンドルから属性を取る
	prober := camera.SessionProber{Session: session, Prober: selector}
	enumerator := camera.NewEnumerator(prober, camera.EnumeratorOptions{
		SysfsRoot:       cfg.Camera.SysfsRoot,
		MediaRoot:       cfg.Camera.MediaRoot,
		DevRoot:         cfg.Camera.DevRoot,
		FallbackIndices: cfg.Camera.FallbackIndices,
		Logger:          logger.Named("enumerator"),
	})
	selector.UseLinkResolver(enumerator)

	service := capture.NewService(capture.Options{
		Lister:    enumerator,
		Session:   session,
		Detector:  side.NewClassifier(),
		Sink:      storage.NewFileSink(cfg.Storage.ImagesPath),
		Logger:    logger.Named("capture"),
		URLPrefix: cfg.Storage.URLPrefix,
	})

	logger.Info("カメラバックエンド",
		zap.Strings("registered", registry.Names()),
		zap.String("preferred", camera.PreferredBackend(registry)))

	return New(cfg, service, logger), nil
}

// Devices は検出したカメラの一覧を返す
func (s *Server) Devices(ctx context.Context) []camera.DeviceDescriptor {
	return s.microscope.ListDevices(ctx)
}
