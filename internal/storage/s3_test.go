package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "beatloop_s3_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "beatloop_s3_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()

	// Scratch handling is inherited from LocalStorage
	dir, err := storage.CreateScratch(ctx, "job-s3")
	if err != nil {
		t.Fatalf("CreateScratch() error = %v", err)
	}

	path, err := storage.SaveTemp(ctx, dir, "final.mp4", bytes.NewReader([]byte("test data")))
	if err != nil {
		t.Fatalf("SaveTemp() error = %v", err)
	}

	reader, err := storage.LoadTemp(ctx, path)
	if err != nil {
		t.Fatalf("LoadTemp() error = %v", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(content) != "test data" {
		t.Errorf("got %q, want %q", string(content), "test data")
	}

	if err := storage.CleanupScratch(ctx, dir); err != nil {
		t.Fatalf("CleanupScratch() error = %v", err)
	}

	if !storage.S3Enabled() {
		t.Error("expected S3Enabled() to be true")
	}
}

func TestS3Storage_UploadToS3_MockServer(t *testing.T) {
	// Create a mock S3 server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}

		if ct := r.Header.Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("Content-Type = %q, want video/mp4", ct)
		}

		if !strings.Contains(r.URL.Path, "/renders/job-1.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if !strings.Contains(string(body), "test content") {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tempDir := filepath.Join(os.TempDir(), "beatloop_s3_mock_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()
	url, err := storage.UploadToS3(ctx, "renders/job-1.mp4", bytes.NewReader([]byte("test content")))
	if err != nil {
		t.Fatalf("UploadToS3() error = %v", err)
	}

	expectedURL := server.URL + "/test-bucket/renders/job-1.mp4"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}

func TestS3Storage_UploadToS3_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tempDir := filepath.Join(os.TempDir(), "beatloop_s3_err_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	storage, err := NewS3Storage(tempDir, S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	_, err = storage.UploadToS3(context.Background(), "renders/job-2.mp4", bytes.NewReader([]byte("x")))
	if err == nil {
		t.Fatal("expected error from rejected upload")
	}
	if !strings.Contains(err.Error(), "renders/job-2.mp4") {
		t.Errorf("error %q should name the key", err)
	}
}

func TestS3Storage_ObjectURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"aws", "", "https://videos.s3.eu-west-1.amazonaws.com/renders/job-1.mp4"},
		{"custom endpoint", "http://minio:9000", "http://minio:9000/videos/renders/job-1.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3Storage{bucket: "videos", region: "eu-west-1", endpoint: tt.endpoint}
			if got := s.objectURL("renders/job-1.mp4"); got != tt.want {
				t.Errorf("objectURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewS3Storage_TrimsEndpointSlash(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "beatloop_s3_slash_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	storage, err := NewS3Storage(tempDir, S3Config{
		Bucket:   "videos",
		Region:   "us-east-1",
		Endpoint: "http://localhost:4566/",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	if storage.endpoint != "http://localhost:4566" {
		t.Errorf("endpoint = %v, want trailing slash removed", storage.endpoint)
	}
}
