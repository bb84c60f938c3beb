// Package filestore は描画済み画像をローカルディスクに保存します。
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leaf_backend/internal/feature/detection/usecase"
)

// DirStore は baseDir/<sessionID>/<resultID>.jpg に画像を保存します。
type DirStore struct {
	baseDir string
}

// DirStoreがResultStoreを実装していることをコンパイル時に検証します。
var _ usecase.ResultStore = (*DirStore)(nil)

// NewDirStore は保存先ディレクトリを作成し、DirStoreを返します。
func NewDirStore(baseDir string) (*DirStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve result dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create result dir: %w", err)
	}
	return &DirStore{baseDir: abs}, nil
}

// Save は画像を書き込み、保存先パスを返します。一時ファイルに書いてからリネームします。
func (s *DirStore) Save(ctx context.Context, sessionID, resultID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validName(sessionID) || !validName(resultID) {
		return "", fmt.Errorf("invalid result key %q/%q", sessionID, resultID)
	}

	dir := filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create session dir: %w", err)
	}

	path := filepath.Join(dir, resultID+".jpg")
	tmp, err := os.CreateTemp(dir, resultID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close result: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store result: %w", err)
	}
	return path, nil
}

// Open は保存済み画像を読み込みます。
func (s *DirStore) Open(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.contains(path) {
		return nil, fmt.Errorf("path %q is outside result dir", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	return data, nil
}

// Remove は保存済み画像を削除します。存在しない場合は何もしません。
// 空になったセッションディレクトリも削除します。
func (s *DirStore) Remove(_ context.Context, path string) error {
	if !s.contains(path) {
		return fmt.Errorf("path %q is outside result dir", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove result: %w", err)
	}
	// 他の結果が残っている場合は失敗するので無視する
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (s *DirStore) contains(path string) bool {
	rel, err := filepath.Rel(s.baseDir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
