package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hitoshi/labelwatch/internal/model"
)

// Write はMarkdownのレポートをpathに保存する。
// 親ディレクトリを作成し、同じディレクトリの一時ファイルに書き込んでからリネームする。
// 失敗した場合は一時ファイルを削除して*model.WriteErrorを返し、既存のファイルは変更しない。
func Write(markdown, path string) error {
	return writeAtomic(path, func(tmpName string) error {
		return os.WriteFile(tmpName, []byte(markdown), 0o644)
	})
}

// writeAtomic はpathと同じディレクトリに一時ファイルを作り、fillで内容を書き込ませる。
// fsyncの後にリネームし、途中で失敗した場合は一時ファイルを削除する。
func writeAtomic(path string, fill func(tmpName string) error) error {
	if strings.TrimSpace(path) == "" {
		return &model.WriteError{Path: path, Err: errors.New("empty output path")}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &model.WriteError{Path: path, Err: fmt.Errorf("create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &model.WriteError{Path: path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpName := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &model.WriteError{Path: path, Err: fmt.Errorf("close temp file: %w", err)}
	}

	// 以降の失敗時は一時ファイルを残さない
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmpName); err != nil {
		return &model.WriteError{Path: path, Err: fmt.Errorf("write: %w", err)}
	}
	if err := syncFile(tmpName); err != nil {
		return &model.WriteError{Path: path, Err: fmt.Errorf("sync: %w", err)}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &model.WriteError{Path: path, Err: fmt.Errorf("chmod: %w", err)}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &model.WriteError{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}

	committed = true
	return nil
}

func syncFile(name string) error {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
