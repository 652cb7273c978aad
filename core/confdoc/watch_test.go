package confdoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, 20*time.Millisecond, func(data []byte) error {
			changes <- string(data)
			return errors.New("ignored")
		})
	}()

	// 监听器在协程里注册，持续写入直到收到通知
	var got string
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("v1"), 0o644)
		select {
		case got = <-changes:
			return true
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)
	assert.Equal(t, "v1", got)

	// 等之前的写入都处理完，同目录的其他文件不触发
	time.Sleep(200 * time.Millisecond)
	for len(changes) > 0 {
		<-changes
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, changes)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WatchFile did not stop after cancel")
	}
}
