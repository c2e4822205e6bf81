// Package storage は撮影画像の保存先を提供する
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidPath は保存先がルート外を指していることを表す
var ErrInvalidPath = errors.New("storage: invalid path")

// Sink はバイト列を相対パスに永続化する
type Sink interface {
	Write(ctx context.Context, relPath string, data []byte) error
}

// FileSink はローカルディレクトリに保存する Sink
type FileSink struct {
	root string
}

// NewFileSink は新しい FileSink を作成する
func NewFileSink(root string) *FileSink {
	return &FileSink{root: root}
}

// Root は保存先ルートディレクトリを返す
func (s *FileSink) Root() string {
	return s.root
}

// Write は親ディレクトリを作成してからファイルを書き込む
func (s *FileSink) Write(ctx context.Context, relPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}

	// 書き込み途中のファイルを公開しないよう一時ファイル経由で配置する
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ファイルのクローズに失敗: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("パーミッションの設定に失敗: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ファイルの配置に失敗: %w", err)
	}

	return nil
}

// resolve は相対パスをルート配下の絶対パスに変換する
func (s *FileSink) resolve(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}

	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}

	return filepath.Join(s.root, cleaned), nil
}

// MemorySink はテスト用のメモリ上の Sink
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte

	// Err が設定されていれば Write はそのエラーを返す
	Err error
}

// NewMemorySink は新しい MemorySink を作成する
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// Write はデータをメモリに保存する
func (s *MemorySink) Write(ctx context.Context, relPath string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.files[relPath] = buf
	return nil
}

// Get は保存済みのデータを返す
func (s *MemorySink) Get(relPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[relPath]
	return data, ok
}

// Paths は保存済みのパス一覧を返す
func (s *MemorySink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	return paths
}
