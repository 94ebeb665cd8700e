package main

import (
	"log"
	"os"
	"strings"

	"terrascape.ai/internal/persistence/r2s3"
)

// openLogMirror returns nil unless TS_R2_ENDPOINT and TS_R2_BUCKET are set.
func openLogMirror(dataDir string, logger *log.Logger) (*r2s3.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("TS_R2_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("TS_R2_BUCKET"))
	if endpoint == "" || bucket == "" {
		return nil, nil
	}
	c, err := r2s3.New(r2s3.Config{
		Endpoint:        endpoint,
		Bucket:          bucket,
		Region:          os.Getenv("TS_R2_REGION"),
		AccessKeyID:     os.Getenv("TS_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("TS_R2_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, err
	}
	return r2s3.NewMirror(c, dataDir, os.Getenv("TS_R2_PREFIX"), logger), nil
}

type mirrorMetrics struct{ m *r2s3.Mirror }

func (mm mirrorMetrics) metricLines() []metricLine {
	st := mm.m.Stats()
	return []metricLine{
		{"terrascape_log_mirror_queue_depth", "gauge", "Event log files waiting for upload.", float64(st.QueueDepth)},
		{"terrascape_log_mirror_uploaded_total", "counter", "Event log files uploaded.", float64(st.Uploaded)},
		{"terrascape_log_mirror_failed_total", "counter", "Event log uploads that failed.", float64(st.Failed)},
		{"terrascape_log_mirror_dropped_total", "counter", "Event log files skipped because the queue was full.", float64(st.Dropped)},
	}
}
