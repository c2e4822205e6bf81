// Package capture はカメラから1枚撮影して評価・保存するまでの流れをまとめる
package capture

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nomisma/internal/camera"
	"nomisma/internal/quality"
	"nomisma/internal/side"
	"nomisma/internal/storage"
)

// DefaultImageType は image_type 未指定時の保存先サブディレクトリ
const DefaultImageType = "temp"

var (
	// ErrEncode はフレームを JPEG に変換できなかったことを表す
	ErrEncode = errors.New("capture: encode failed")
	// ErrPersist は保存先への書き込みに失敗したことを表す
	ErrPersist = errors.New("capture: persist failed")
	// ErrInvalidImageType は image_type が不正であることを表す
	ErrInvalidImageType = errors.New("capture: invalid image type")
)

var imageTypePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Lister はデバイス一覧を返す
type Lister interface {
	ListAvailableCameras(ctx context.Context) []camera.DeviceDescriptor
}

// Session はカメラセッションの操作
// Acquire はデバイスの確保と読み取りを不可分に行う
type Session interface {
	Open(id camera.Identifier) error
	Acquire(id camera.Identifier) (camera.Frame, error)
	Close()
	Status() camera.SessionStatus
}

// Encoder はフレームを画像バイト列に変換する
type Encoder func(frame camera.Frame) ([]byte, error)

// NameFunc は保存先の相対パスを生成する
type NameFunc func(imageType string, now time.Time) string

// Request は撮影要求
type Request struct {
	ImageType string // 保存先サブディレクトリ（空なら temp）
	SideHint  string // 利用者が指定した面（obverse / reverse）
}

// Result は撮影結果
type Result struct {
	FilePath  string            `json:"file_path"`
	URL       string            `json:"url"`
	Timestamp time.Time         `json:"timestamp"`
	Side      side.Resolution   `json:"side"`
	Quality   quality.Metrics   `json:"quality"`
	Camera    camera.Identifier `json:"camera_index"`
}

// Options は Service の依存関係
type Options struct {
	Lister   Lister
	Session  Session
	Detector side.Detector
	Sink     storage.Sink
	Encoder  Encoder
	Name     NameFunc
	Now      func() time.Time
	Logger   *zap.Logger

	// URLPrefix は保存画像を配信する URL の接頭辞
	URLPrefix string
}

// Service は撮影・プレビュー・デバイス操作を提供する
type Service struct {
	lister    Lister
	session   Session
	detector  side.Detector
	sink      storage.Sink
	encode    Encoder
	name      NameFunc
	now       func() time.Time
	logger    *zap.Logger
	urlPrefix string
}

// NewService は新しい Service を作成する
func NewService(opts Options) *Service {
	s := &Service{
		lister:    opts.Lister,
		session:   opts.Session,
		detector:  opts.Detector,
		sink:      opts.Sink,
		encode:    opts.Encoder,
		name:      opts.Name,
		now:       opts.Now,
		logger:    opts.Logger,
		urlPrefix: opts.URLPrefix,
	}
	if s.detector == nil {
		s.detector = side.NewClassifier()
	}
	if s.encode == nil {
		s.encode = camera.EncodeJPEG
	}
	if s.name == nil {
		s.name = GenerateFilename
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.urlPrefix == "" {
		s.urlPrefix = "/images"
	}
	return s
}

// ListDevices は利用可能なデバイス一覧を返す
func (s *Service) ListDevices(ctx context.Context) []camera.DeviceDescriptor {
	if s.lister == nil {
		return []camera.DeviceDescriptor{}
	}
	return s.lister.ListAvailableCameras(ctx)
}

// Capture は1枚撮影し、品質評価と面の推定を付けて保存する
func (s *Service) Capture(ctx context.Context, id camera.Identifier, req Request) (*Result, error) {
	imageType, err := normalizeImageType(req.ImageType)
	if err != nil {
		return nil, err
	}

	frame, err := s.acquire(id)
	if err != nil {
		return nil, err
	}

	metrics := quality.Evaluate(frame)
	resolution := side.Resolve(req.SideHint, s.detector.Detect(frame))

	data, err := s.encode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	now := s.now()
	relPath := s.name(imageType, now)
	if err := s.sink.Write(ctx, relPath, data); err != nil {
		s.logger.Error("画像の保存に失敗", zap.String("path", relPath), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.logger.Info("撮影しました",
		zap.Stringer("camera", id),
		zap.String("path", relPath),
		zap.Float64("blur_score", metrics.BlurScore),
		zap.Float64("brightness", metrics.Brightness),
		zap.Bool("ok", metrics.OK),
		zap.String("side", string(resolution.Label)))

	return &Result{
		FilePath:  relPath,
		URL:       path.Join(s.urlPrefix, relPath),
		Timestamp: now,
		Side:      resolution,
		Quality:   metrics,
		Camera:    id,
	}, nil
}

// Preview は1枚撮影して JPEG バイト列を返す。保存はしない
func (s *Service) Preview(ctx context.Context, id camera.Identifier) ([]byte, error) {
	frame, err := s.acquire(id)
	if err != nil {
		return nil, err
	}

	data, err := s.encode(frame)
	if err != nil {
		s.logger.Warn("プレビューのエンコードに失敗", zap.Stringer("camera", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

// Open は指定のカメラを開く
func (s *Service) Open(id camera.Identifier) error {
	return s.session.Open(id)
}

// Close は開いているカメラを解放する
func (s *Service) Close() {
	s.session.Close()
}

// Status はセッションの状態を返す
func (s *Service) Status() camera.SessionStatus {
	return s.session.Status()
}

// acquire はカメラを確保して1フレーム読み取る
func (s *Service) acquire(id camera.Identifier) (camera.Frame, error) {
	return s.session.Acquire(id)
}

// GenerateFilename は <image_type>/capture_<日時>_<uuid先頭8文字>.jpg を返す
func GenerateFilename(imageType string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return path.Join(imageType, fmt.Sprintf("capture_%s_%s.jpg", now.Format("20060102_150405"), suffix))
}

func normalizeImageType(imageType string) (string, error) {
	imageType = strings.TrimSpace(imageType)
	if imageType == "" {
		return DefaultImageType, nil
	}
	if !imageTypePattern.MatchString(imageType) {
		return "", fmt.Errorf("%w: %q", ErrInvalidImageType, imageType)
	}
	return imageType, nil
}
