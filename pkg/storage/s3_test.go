package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is an in-memory bucket.
type mockS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	lengths      map[string]int64

	getErr    error
	putErr    error
	deleteErr error
	headErr   error
}

func newMockS3() *mockS3 {
	return &mockS3{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		lengths:      make(map[string]int64),
	}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	if in.ContentType != nil {
		m.contentTypes[*in.Key] = *in.ContentType
	}
	if in.ContentLength != nil {
		m.lengths[*in.Key] = *in.ContentLength
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3WriteRead(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "media", "")
	data := []byte("\x89PNG\r\n\x1a\n")

	writeAll(t, store, "frames/cover.png", data)
	if got := readAll(t, store, "frames/cover.png"); !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if ct := mock.contentTypes["frames/cover.png"]; ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if n := mock.lengths["frames/cover.png"]; n != int64(len(data)) {
		t.Errorf("content length = %d, want %d", n, len(data))
	}
}

func TestS3KeyPrefix(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "media", "/sealed/out/")
	writeAll(t, store, "clip.wav", []byte("x"))

	mock.mu.Lock()
	_, ok := mock.objects["sealed/out/clip.wav"]
	mock.mu.Unlock()
	if !ok {
		t.Fatal("expected key sealed/out/clip.wav")
	}
	if got := NewS3(mock, "media", "").key("a/b"); got != "a/b" {
		t.Fatalf("key = %q, want a/b", got)
	}
}

func TestS3ReadErrors(t *testing.T) {
	store := NewS3(newMockS3(), "media", "")
	if _, err := store.Read(context.Background(), "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}

	mock := newMockS3()
	mock.getErr = errors.New("network timeout")
	_, err := NewS3(mock, "media", "").Read(context.Background(), "x")
	if err == nil || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected generic error, got %v", err)
	}
}

func TestS3Exists(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "media", "")
	ctx := context.Background()

	if ok, err := store.Exists(ctx, "missing"); err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	mock.objects["present"] = []byte("data")
	if ok, err := store.Exists(ctx, "present"); err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v", ok, err)
	}

	mock.headErr = errors.New("network failure")
	if _, err := store.Exists(ctx, "present"); err == nil {
		t.Fatal("expected head error")
	}
}

func TestS3Delete(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "media", "")
	ctx := context.Background()

	if err := store.Delete(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}
	mock.objects["tmp"] = []byte("x")
	if err := store.Delete(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["tmp"]; ok {
		t.Fatal("object should be gone after delete")
	}

	mock.deleteErr = errors.New("access denied")
	if err := store.Delete(ctx, "tmp"); err == nil {
		t.Fatal("expected delete error")
	}
}

func TestS3WriteUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("upload failed")
	w, err := NewS3(mock, "media", "").Write(context.Background(), "obj")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "data")
	if err := w.Close(); err == nil || err.Error() != "upload failed" {
		t.Fatalf("Close = %v, want upload failed", err)
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("Write after Close = %v, want os.ErrClosed", err)
	}
}

func TestNewS3ClientCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := NewS3Client(S3Config{}); err == nil {
		t.Fatal("expected missing credentials error")
	}
	c, err := NewS3Client(S3Config{
		Endpoint:     "http://127.0.0.1:9000",
		UsePathStyle: true,
		AccessKey:    "minio",
		SecretKey:    "minio123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("nil client")
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NoSuchKey", errNoSuchKey, true},
		{"NotFound", errNotFound, true},
		{"other api error", &apiError{code: "AccessDenied", msg: "denied"}, false},
		{"plain error", errors.New("timeout"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFound(tt.err); got != tt.want {
				t.Fatalf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
