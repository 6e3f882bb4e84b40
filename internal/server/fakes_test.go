package server

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
)

// fakeAudit is an in-memory AuditRecorder.
type fakeAudit struct {
	mu        sync.Mutex
	events    []AuditEvent
	recordErr error
	pingErr   error
	ctxErrs   []error
}

func (f *fakeAudit) Record(ctx context.Context, ev AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.recordErr != nil {
		return f.recordErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAudit) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AuditEvent, 0, limit)
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.events[i])
	}
	return out, nil
}

func (f *fakeAudit) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeAudit) recorded() []AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AuditEvent(nil), f.events...)
}

// fakeObjectStorage keeps uploaded objects in memory.
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	exists  bool
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		exists:  true,
	}
}

func (f *fakeObjectStorage) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return minio.UploadInfo{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucketName+"/"+objectName] = buf.Bytes()
	f.types[bucketName+"/"+objectName] = opts.ContentType
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: int64(buf.Len())}, nil
}

func (f *fakeObjectStorage) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return f.exists, nil
}

func (f *fakeObjectStorage) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[bucket+"/"+key]
	return b, ok
}

func (f *fakeObjectStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
