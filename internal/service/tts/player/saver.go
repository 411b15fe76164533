package player

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Saver принимает сохраняемое аудио: файл на диске, HTTP-вложение и т.п.
type Saver interface {
	Save(name, contentType string, r io.Reader) error
}

// DirSaver сохраняет файлы в каталог. Существующий файл не перезаписывается.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(name, _ string, r io.Reader) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Path полный путь файла с именем name.
func (d DirSaver) Path(name string) string {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.Base(name))
}
