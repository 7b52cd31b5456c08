package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("create rotating writer", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		assert.NotNil(t, rw)

		defer rw.Close()

		// Verify file was created
		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "subdir", "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		assert.NotNil(t, rw)

		defer rw.Close()

		// Verify directory was created
		_, err = os.Stat(filepath.Dir(logFile))
		assert.NoError(t, err)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	data := []byte("test log message\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test log message")
}

func TestRotatingWriterRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	// A zero-MB limit forces rotation on the first write.
	rw, err := NewRotatingWriter(logFile, 0, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = rw.Write([]byte(strings.Repeat("a", 200)))
	require.NoError(t, err)

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	assert.Len(t, rotated, 1)

	// The write itself lands in the fresh active file.
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Len(t, content, 200)
}

func TestRotatingWriterConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := rw.Write([]byte("line\n"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rw.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 200, strings.Count(string(content), "line\n"))
}

func TestRotatingWriterClose(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)

	assert.NoError(t, rw.Close())
	// Closing twice is harmless.
	assert.NoError(t, rw.Close())
}

func TestGzipAndRemove(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")

	err := os.WriteFile(testFile, []byte("test content"), 0644)
	require.NoError(t, err)

	err = gzipAndRemove(testFile)
	require.NoError(t, err)

	// Compressed file exists, original is gone.
	_, err = os.Stat(testFile + ".gz")
	assert.NoError(t, err)

	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestPrune(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	// A rotated file well past the retention window.
	oldFile := logFile + ".20200101-120000"
	err := os.WriteFile(oldFile, []byte("old log"), 0644)
	require.NoError(t, err)

	oldTime := time.Now().AddDate(0, 0, -10)
	err = os.Chtimes(oldFile, oldTime, oldTime)
	require.NoError(t, err)

	// A recent rotated file that must survive.
	recentFile := logFile + ".20260801-120000"
	err = os.WriteFile(recentFile, []byte("recent log"), 0644)
	require.NoError(t, err)

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	rw.prune()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(recentFile)
	assert.NoError(t, err)
}
