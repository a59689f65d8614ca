// Package credstore はセッショントークンのローカル永続化を提供する。
// プロセス再起動をまたいでセッションを復元するための最小限のストレージ層。
package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MORTAKI0/VitaCoach/internal/model"
)

// Store はセッショントークンの保存・取得・破棄のインターフェース。
type Store interface {
	// Save はトークンを永続化する。既存の値は上書きされる。
	Save(token string) error
	// Load は保存済みのトークンを返す。未保存の場合は ("", nil)。
	Load() (string, error)
	// Clear は保存済みのトークンを破棄する。未保存でもエラーにならない（冪等）。
	Clear() error
}

// fileStore はトークンを単一ファイルに保存するStore実装。
// 一時ファイルへの書き込みとリネームにより、部分書き込みされた
// トークンが読み出されることはない。
type fileStore struct {
	path string
}

// NewFileStore はファイルベースのStoreを生成する。
// pathが空の場合はユーザー設定ディレクトリ配下の既定パスを使用する。
func NewFileStore(path string) (Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, model.NewStorageError(fmt.Sprintf("設定ディレクトリを特定できません: %v", err))
		}
		path = filepath.Join(configDir, "vitacoach", "session")
	}
	return &fileStore{path: path}, nil
}

func (s *fileStore) Save(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return model.NewStorageError(fmt.Sprintf("保存先ディレクトリを作成できません: %v", err))
	}

	tmp, err := os.CreateTemp(dir, "session-*")
	if err != nil {
		return model.NewStorageError(fmt.Sprintf("一時ファイルを作成できません: %v", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return model.NewStorageError(fmt.Sprintf("トークンを書き込めません: %v", err))
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return model.NewStorageError(fmt.Sprintf("パーミッションを設定できません: %v", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return model.NewStorageError(fmt.Sprintf("一時ファイルを閉じられません: %v", err))
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return model.NewStorageError(fmt.Sprintf("トークンファイルを配置できません: %v", err))
	}
	return nil
}

func (s *fileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", model.NewStorageError(fmt.Sprintf("トークンを読み出せません: %v", err))
	}
	return string(data), nil
}

func (s *fileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return model.NewStorageError(fmt.Sprintf("トークンを破棄できません: %v", err))
	}
	return nil
}

// memoryStore はプロセス内にのみトークンを保持するStore実装。
// 永続化が不要なテストや一時的な利用向け。
type memoryStore struct {
	token string
}

// NewMemoryStore はインメモリのStoreを生成する。
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Save(token string) error {
	s.token = token
	return nil
}

func (s *memoryStore) Load() (string, error) {
	return s.token, nil
}

func (s *memoryStore) Clear() error {
	s.token = ""
	return nil
}
