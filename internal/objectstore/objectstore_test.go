package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type memClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemClient() *memClient {
	return &memClient{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	m.types[*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *memClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *memClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestNewNeedsCredentials(t *testing.T) {
	if s := New(Config{Bucket: "proofs"}, nil); s != nil {
		t.Error("expected nil store without credentials")
	}
	if s := New(Config{Bucket: "proofs", AccessKey: "a", SecretKey: "b", Endpoint: "http://localhost:9000"}, nil); s == nil {
		t.Error("expected a store with full config")
	}
}

func TestPutGetDelete(t *testing.T) {
	client := newMemClient()
	s := NewWithClient(client, "proofs", nil)
	ctx := context.Background()

	body := "jpeg bytes"
	if err := s.Put(ctx, "proofs/1/2/a.jpg", "image/jpeg", strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := client.types["proofs/1/2/a.jpg"]; got != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", got)
	}

	rc, size, err := s.Get(ctx, "proofs/1/2/a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != body || size != int64(len(body)) {
		t.Errorf("Get = %q (%d), want %q (%d)", data, size, body, len(body))
	}

	if err := s.Delete(ctx, "proofs/1/2/a.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "proofs/1/2/a.jpg"); err == nil {
		t.Error("expected error after delete")
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if err := s.Put(context.Background(), "k", "", strings.NewReader("x"), 1); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Put err = %v, want ErrNotConfigured", err)
	}
	if err := s.Delete(context.Background(), "k"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Delete err = %v, want ErrNotConfigured", err)
	}
}
