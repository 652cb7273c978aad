package confdoc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"DHAdmin/logger"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle 文件最后一次变动后等待多久再读取
const DefaultSettle = 200 * time.Millisecond

// WatchFile calls onChange with the file contents every time path is written,
// after it has been quiet for settle. It blocks until ctx is done. Errors from
// onChange are logged and watching continues.
func WatchFile(ctx context.Context, path string, settle time.Duration, onChange func([]byte) error) error {
	if settle <= 0 {
		settle = DefaultSettle
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	// 监听所在目录，编辑器保存时常常是先写临时文件再重命名
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}

	var pendingSince time.Time
	checkTicker := time.NewTicker(settle / 4)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pendingSince = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("[Watch] 文件监听出错", logger.ErrorField(err))

		case <-checkTicker.C:
			if pendingSince.IsZero() || time.Since(pendingSince) < settle {
				continue
			}
			pendingSince = time.Time{}

			data, err := os.ReadFile(abs)
			if err != nil {
				// 重命名过程中文件可能暂时不存在
				logger.Warn("[Watch] 读取文件失败", logger.String("path", abs), logger.ErrorField(err))
				continue
			}
			if err := onChange(data); err != nil {
				logger.Warn("[Watch] 处理文件变更失败", logger.String("path", abs), logger.ErrorField(err))
			}
		}
	}
}
