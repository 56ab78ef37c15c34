package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"snakepit.gg/internal/persistence/r2s3"
)

// mirrorRuntime is the optional off-box archive mirror, configured
// entirely from SP_MIRROR_* environment variables so local dev runs
// without one.
type mirrorRuntime struct {
	enabled bool
	mirror  *r2s3.Mirror
}

func buildMirrorRuntime(dataDir string, logger *log.Logger) (*mirrorRuntime, error) {
	if !envBool("SP_MIRROR", false) {
		return &mirrorRuntime{}, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("SP_MIRROR_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("SP_MIRROR_BUCKET"))
	accessKeyID := strings.TrimSpace(os.Getenv("SP_MIRROR_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("SP_MIRROR_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("SP_MIRROR_PREFIX"))

	client, err := r2s3.New(endpoint, bucket, accessKeyID, secretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}

	workers := envInt("SP_MIRROR_WORKERS", 2)
	queueCap := envInt("SP_MIRROR_QUEUE", 1024)
	m := r2s3.NewMirror(client, dataDir, prefix, workers, queueCap, 25*time.Millisecond, logger)
	logger.Printf("archive mirror enabled bucket=%s prefix=%q workers=%d", bucket, prefix, workers)
	return &mirrorRuntime{enabled: true, mirror: m}, nil
}

func (m *mirrorRuntime) EnqueueArchive(dir string) {
	if m == nil || !m.enabled {
		return
	}
	m.mirror.EnqueueArchive(dir)
}

func (m *mirrorRuntime) Close() {
	if m == nil || !m.enabled {
		return
	}
	m.mirror.Close()
}

func writeMirrorMetrics(rw http.ResponseWriter, m *mirrorRuntime) {
	if m == nil || !m.enabled {
		return
	}
	s := m.mirror.Stats()
	fmt.Fprintf(rw, "# HELP snakepit_mirror_queue_depth Current archive mirror queue depth.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_mirror_queue_depth gauge\n")
	fmt.Fprintf(rw, "snakepit_mirror_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP snakepit_mirror_enqueued_total Total mirror enqueue attempts.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_mirror_enqueued_total counter\n")
	fmt.Fprintf(rw, "snakepit_mirror_enqueued_total %d\n", s.EnqueuedTotal)

	fmt.Fprintf(rw, "# HELP snakepit_mirror_dropped_total Total mirror files dropped under saturation.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_mirror_dropped_total counter\n")
	fmt.Fprintf(rw, "snakepit_mirror_dropped_total %d\n", s.DroppedTotal)

	fmt.Fprintf(rw, "# HELP snakepit_mirror_upload_success_total Total successful mirror uploads.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_mirror_upload_success_total counter\n")
	fmt.Fprintf(rw, "snakepit_mirror_upload_success_total %d\n", s.UploadSuccessTotal)

	fmt.Fprintf(rw, "# HELP snakepit_mirror_upload_fail_total Total failed mirror uploads after retry.\n")
	fmt.Fprintf(rw, "# TYPE snakepit_mirror_upload_fail_total counter\n")
	fmt.Fprintf(rw, "snakepit_mirror_upload_fail_total %d\n", s.UploadFailTotal)
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
