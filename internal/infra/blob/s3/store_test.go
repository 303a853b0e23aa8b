package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"chemident/internal/blob/core"
)

func TestMockStore_RoundTrip(t *testing.T) { //nolint:cyclop
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 || store.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected store %s %s", store.Driver(), store.Bucket())
	}
	payload := []byte(`[{"id":[null,1,100],"links":[]}]`)
	info, err := store.Put(ctx, "indexes/compound_parents.json", bytes.NewReader(payload), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"table": "compound_parents"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", info.Size)
	}
	if _, err := store.Put(ctx, "indexes/compound_parents.json", bytes.NewReader(payload), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	h, err := store.Head(ctx, "indexes/compound_parents.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.ContentType != "application/json" || h.Metadata["table"] != "compound_parents" {
		t.Fatalf("unexpected head %+v", h)
	}
	_, rc, err := store.Get(ctx, "indexes/compound_parents.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(b, payload) {
		t.Fatalf("unexpected body %q", b)
	}
	if _, err := store.Put(ctx, "indexes/compound_children.json", bytes.NewReader(payload), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := store.List(ctx, "indexes/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "indexes/compound_children.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	ok, err := store.Delete(ctx, "indexes/compound_parents.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "indexes/compound_parents.json")
	if err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "indexes/compound_parents.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(ctx, "indexes/compound_parents.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusForbidden, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func newFailingStore(t *testing.T) *Store {
	t.Helper()
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.HTTPClient = &http.Client{Transport: failingTransport{}}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.RetryMaxAttempts = 1
	})
	return &Store{client: client, bucket: "denied"}
}

func TestStore_NonNotFoundErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	store := newFailingStore(t)
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil || errors.Is(err, core.ErrExists) {
		t.Fatalf("expected access error from put, got %v", err)
	}
	if _, err := store.Head(ctx, "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected access error from head, got %v", err)
	}
	if _, err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected access error from delete")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CHEMIDENT_BLOB_S3_BUCKET", "chembl-indexes")
	t.Setenv("CHEMIDENT_BLOB_S3_REGION", "eu-west-2")
	t.Setenv("CHEMIDENT_BLOB_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("CHEMIDENT_BLOB_S3_PATH_STYLE", "TRUE")
	cfg := ConfigFromEnv()
	if cfg.Bucket != "chembl-indexes" || cfg.Region != "eu-west-2" || cfg.Endpoint != "http://minio:9000" || !cfg.PathStyle {
		t.Fatalf("unexpected config %+v", cfg)
	}
	store, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret", Endpoint: "http://minio:9000", PathStyle: true})
	if err != nil || store.Bucket() != "b" {
		t.Fatalf("new: %v", err)
	}
}

func TestOpenFromEnv_RequiresBucket(t *testing.T) {
	t.Setenv("CHEMIDENT_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error from New")
	}
}
