// snapshot.go - Export of collection snapshots to S3/MinIO.
//
// Snapshots are write-only: they are never read back into the store, so
// the collections still start empty on every restart.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrSnapshotDisabled is returned when no object storage is configured.
var ErrSnapshotDisabled = errors.New("snapshot export is not configured")

const snapshotUploadTimeout = 10 * time.Second

// ObjectStorage is the subset of *minio.Client used for snapshots.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// SnapshotInfo describes one exported object.
type SnapshotInfo struct {
	Bucket        string    `json:"bucket"`
	Key           string    `json:"key"`
	SizeBytes     int64     `json:"size_bytes"`
	TakenAt       time.Time `json:"taken_at"`
	LogSize       int       `json:"log_size"`
	FrequencySize int       `json:"frequency_size"`
}

// SnapshotExporter uploads store snapshots, on demand or on a schedule.
type SnapshotExporter struct {
	client   ObjectStorage
	bucket   string
	prefix   string
	store    *Store
	breaker  *CircuitBreaker
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewSnapshotExporter builds an exporter for store writing into bucket/prefix.
// A zero interval disables the scheduler; Export still works.
func NewSnapshotExporter(client ObjectStorage, bucket string, store *Store, cfg SnapshotConfig) *SnapshotExporter {
	return &SnapshotExporter{
		client:   client,
		bucket:   bucket,
		prefix:   cfg.Prefix,
		store:    store,
		breaker:  NewCircuitBreaker("snapshot_storage", 3, time.Minute),
		interval: cfg.Interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Export takes a snapshot and uploads it as JSON.
func (e *SnapshotExporter) Export(ctx context.Context) (SnapshotInfo, error) {
	snap := e.store.Snapshot()

	data, err := json.Marshal(snap)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("encode snapshot: %w", err)
	}

	key := e.objectKey(snap.TakenAt)
	err = e.breaker.Execute(func() error {
		_, err := e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/json"})
		return err
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("upload snapshot %s: %w", key, err)
	}

	return SnapshotInfo{
		Bucket:        e.bucket,
		Key:           key,
		SizeBytes:     int64(len(data)),
		TakenAt:       snap.TakenAt,
		LogSize:       snap.LogSize,
		FrequencySize: snap.FrequencySize,
	}, nil
}

func (e *SnapshotExporter) objectKey(t time.Time) string {
	name := fmt.Sprintf("snapshot-%s-%s.json", t.UTC().Format("20060102T150405Z"), uuid.NewString())
	if e.prefix == "" {
		return name
	}
	return path.Join(e.prefix, name)
}

// Ping checks that the bucket is reachable.
func (e *SnapshotExporter) Ping(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket does not exist: %s", e.bucket)
	}
	return nil
}

// Breaker exposes the breaker for stats reporting.
func (e *SnapshotExporter) Breaker() *CircuitBreaker {
	return e.breaker
}

// Start runs the periodic export loop until Stop. onExport, if non-nil,
// is called after every attempt.
func (e *SnapshotExporter) Start(onExport func(SnapshotInfo, error)) {
	if e.interval <= 0 {
		close(e.done)
		Info("scheduled snapshots disabled", nil)
		return
	}

	Info("snapshot scheduler started", map[string]any{
		"interval": e.interval.String(),
		"bucket":   e.bucket,
		"prefix":   e.prefix,
	})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), snapshotUploadTimeout)
				info, err := e.Export(ctx)
				cancel()
				if err != nil {
					Error("scheduled snapshot failed", nil, err)
				} else {
					Info("scheduled snapshot exported", map[string]any{"key": info.Key})
				}
				if onExport != nil {
					onExport(info, err)
				}
			case <-e.stopCh:
				Info("snapshot scheduler stopped", nil)
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight export to finish.
// It must only be called after Start.
func (e *SnapshotExporter) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	<-e.done
}
