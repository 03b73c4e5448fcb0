package cdn

import (
	"context"
	"testing"
)

func TestNew_IncompleteConfigDegradesToNullUploader(t *testing.T) {
	u, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u.configured() {
		t.Fatal("uploader reports configured with an empty Config")
	}
}

func TestUpload_NullUploaderReturnsError(t *testing.T) {
	u, _ := New(Config{}, nil)
	_, err := u.Upload(context.Background(), []byte("data"), "sticker.gif")
	if err == nil {
		t.Fatal("expected an error from an unconfigured uploader")
	}
}

func TestNew_CompleteConfigIsConfigured(t *testing.T) {
	u, err := New(Config{
		Endpoint: "https://s3.example", Region: "us-east-1", Bucket: "assets",
		AccessKey: "key", SecretKey: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !u.configured() {
		t.Fatal("uploader reports unconfigured with a complete Config")
	}
}
