package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nomisma/internal/camera"
	"nomisma/internal/capture"
	"nomisma/internal/config"
)

// Version は API のバージョン
const Version = "1.0.0"

// defaultCameraIndex は camera_index 未指定時に使うカメラ
const defaultCameraIndex = "0"

// Microscope はハンドラが利用する撮影サービス
type Microscope interface {
	ListDevices(ctx context.Context) []camera.DeviceDescriptor
	Capture(ctx context.Context, id camera.Identifier, req capture.Request) (*capture.Result, error)
	Preview(ctx context.Context, id camera.Identifier) ([]byte, error)
	Open(id camera.Identifier) error
	Close()
	Status() camera.SessionStatus
}

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DevicesResponse はデバイス一覧のレスポンス
type DevicesResponse struct {
	Success bool                      `json:"success"`
	Cameras []camera.DeviceDescriptor `json:"cameras"`
	Count   int                       `json:"count"`
}

// CaptureResponse は撮影結果のレスポンス
type CaptureResponse struct {
	Success bool `json:"success"`
	*capture.Result
}

// CameraResponse はオープン/クローズのレスポンス
type CameraResponse struct {
	Success     bool   `json:"success"`
	CameraIndex string `json:"camera_index,omitempty"`
	Message     string `json:"message"`
}

// MicroscopeHandler は顕微鏡 API のハンドラ
type MicroscopeHandler struct {
	config     *config.Config
	microscope Microscope
	logger     *zap.Logger
}

// Root はサービス情報を返す
func (h *MicroscopeHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Nomisma API",
		"version": Version,
		"status":  "running",
	})
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *MicroscopeHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *MicroscopeHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "running",
		"server": gin.H{
			"host": h.config.Server.Host,
			"port": h.config.Server.Port,
		},
		"camera":    h.microscope.Status(),
		"timestamp": time.Now(),
	})
}

// ListDevices はデバイス一覧取得エンドポイントの実装
func (h *MicroscopeHandler) ListDevices(c *gin.Context) {
	cameras := h.microscope.ListDevices(c.Request.Context())
	c.JSON(http.StatusOK, DevicesResponse{
		Success: true,
		Cameras: cameras,
		Count:   len(cameras),
	})
}

// Capture は撮影エンドポイントの実装
func (h *MicroscopeHandler) Capture(c *gin.Context) {
	id := cameraIndexQuery(c)
	req := capture.Request{
		ImageType: c.Query("image_type"),
		SideHint:  c.Query("side"),
	}

	result, err := h.microscope.Capture(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CaptureResponse{Success: true, Result: result})
}

// Preview はプレビュー画像エンドポイントの実装
func (h *MicroscopeHandler) Preview(c *gin.Context) {
	data, err := h.microscope.Preview(c.Request.Context(), cameraIndexQuery(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", data)
}

// OpenCamera はカメラオープンエンドポイントの実装
func (h *MicroscopeHandler) OpenCamera(c *gin.Context) {
	raw := c.Param("camera_index")
	if err := h.microscope.Open(camera.ParseIdentifier(raw)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CameraResponse{
		Success:     true,
		CameraIndex: raw,
		Message:     "Camera opened successfully",
	})
}

// CloseCamera はカメラクローズエンドポイントの実装
func (h *MicroscopeHandler) CloseCamera(c *gin.Context) {
	h.microscope.Close()
	c.JSON(http.StatusOK, CameraResponse{
		Success: true,
		Message: "Camera closed successfully",
	})
}

// respondError はエラーの種類に応じたステータスとコードで応答する
func (h *MicroscopeHandler) respondError(c *gin.Context, err error) {
	status, code, message := classifyError(err)
	h.logger.Warn("リクエストの処理に失敗",
		zap.String("path", c.FullPath()),
		zap.String("code", code),
		zap.Error(err))

	_ = c.Error(err)
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// classifyError はエラーを HTTP ステータスとエラーコードに変換する
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, capture.ErrInvalidImageType):
		return http.StatusBadRequest, "invalid_image_type", "image_type は英小文字・数字・-・_ のみ指定できます"
	case errors.Is(err, camera.ErrDeviceUnopenable):
		return http.StatusInternalServerError, "device_unopenable", "カメラを開けませんでした"
	case errors.Is(err, camera.ErrReadExhausted):
		return http.StatusInternalServerError, "read_exhausted", "フレームを取得できませんでした"
	case errors.Is(err, capture.ErrEncode):
		return http.StatusInternalServerError, "encode_failed", "画像のエンコードに失敗しました"
	case errors.Is(err, capture.ErrPersist):
		return http.StatusInternalServerError, "persist_failed", "画像の保存に失敗しました"
	default:
		return http.StatusInternalServerError, "internal_error", err.Error()
	}
}

func cameraIndexQuery(c *gin.Context) camera.Identifier {
	return camera.ParseIdentifier(c.DefaultQuery("camera_index", defaultCameraIndex))
}
