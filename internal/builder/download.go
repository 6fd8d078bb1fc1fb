package builder

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Downloader 承接导出成功后的文件下载副作用。
// Download 在 Store 的锁内调用，实现不能回调 Store。
type Downloader interface {
	Download(filename string, data []byte) error
}

// FileDownloader 把文件写进某个目录，文件系统可替换（测试用内存实现）。
type FileDownloader struct {
	fs  afero.Fs
	dir string
}

func NewFileDownloader(fs afero.Fs, dir string) *FileDownloader {
	return &FileDownloader{fs: fs, dir: dir}
}

func (d *FileDownloader) Download(filename string, data []byte) error {
	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create download dir %q: %w", d.dir, err)
	}
	path := filepath.Join(d.dir, filepath.Base(filename))
	if err := afero.WriteFile(d.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// Path 返回文件名在下载目录中的完整路径。
func (d *FileDownloader) Path(filename string) string {
	return filepath.Join(d.dir, filepath.Base(filename))
}
