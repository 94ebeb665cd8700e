package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type uploader interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

type MirrorStats struct {
	QueueDepth   int
	Uploaded     uint64
	Failed       uint64
	Dropped      uint64
	LastUploaded string
}

// Mirror uploads finished log files in the background. Object keys are the
// file path relative to the data dir, under an optional prefix.
type Mirror struct {
	up      uploader
	dataDir string
	prefix  string
	logger  *log.Logger

	jobs    chan string
	wg      sync.WaitGroup
	backoff time.Duration

	uploaded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
	last     atomic.Value // string
}

func NewMirror(c *Client, dataDir, prefix string, logger *log.Logger) *Mirror {
	return newMirror(c, dataDir, prefix, 256, logger)
}

func newMirror(up uploader, dataDir, prefix string, queue int, logger *log.Logger) *Mirror {
	m := &Mirror{
		up:      up,
		dataDir: dataDir,
		prefix:  strings.Trim(filepath.ToSlash(prefix), "/"),
		logger:  logger,
		jobs:    make(chan string, queue),
		backoff: 250 * time.Millisecond,
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

// Enqueue never blocks; a full queue drops the file (it stays on disk).
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	select {
	case m.jobs <- localPath:
	default:
		m.dropped.Add(1)
		m.printf("r2s3 mirror: queue full, not uploading %s", localPath)
	}
}

// Close waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() MirrorStats {
	if m == nil {
		return MirrorStats{}
	}
	last, _ := m.last.Load().(string)
	return MirrorStats{
		QueueDepth:   len(m.jobs),
		Uploaded:     m.uploaded.Load(),
		Failed:       m.failed.Load(),
		Dropped:      m.dropped.Load(),
		LastUploaded: last,
	}
}

func (m *Mirror) loop() {
	defer m.wg.Done()
	for p := range m.jobs {
		key, err := m.objectKey(p)
		if err != nil {
			m.failed.Add(1)
			m.printf("r2s3 mirror: %v", err)
			continue
		}
		if err := m.put(key, p); err != nil {
			m.failed.Add(1)
			m.printf("r2s3 mirror: upload %s: %v", key, err)
			continue
		}
		m.uploaded.Add(1)
		m.last.Store(key)
	}
}

func (m *Mirror) put(key, localPath string) error {
	const attempts = 3
	var err error
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		if i < attempts {
			time.Sleep(time.Duration(i*i) * m.backoff)
		}
	}
	return err
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	base, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if m.prefix == "" {
		return rel, nil
	}
	return path.Join(m.prefix, rel), nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
