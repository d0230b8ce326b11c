package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "eu-central-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient:   &http.Client{Transport: &http.Transport{}},
	})
	return &Client{s3: client}
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	client, err := NewClient(context.Background(), Options{
		Endpoint:  "https://objects.example.com",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestEnsureBucket_Exists(t *testing.T) {
	t.Parallel()
	var creates int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			creates++
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.EnsureBucket(context.Background(), "archives"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creates != 0 {
		t.Errorf("expected no create call, got %d", creates)
	}
}

func TestEnsureBucket_CreatesMissing(t *testing.T) {
	t.Parallel()
	var created bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			xmlResponse(w, http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><CreateBucketResult/>`)
		}
	}))

	if err := client.EnsureBucket(context.Background(), "archives"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected bucket to be created")
	}
}

func TestEnsureBucket_AlreadyOwnedByYou(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		xmlResponse(w, http.StatusConflict, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>BucketAlreadyOwnedByYou</Code><Message>owned</Message></Error>`)
	}))

	if err := client.EnsureBucket(context.Background(), "archives"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureBucket_Forbidden(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := client.EnsureBucket(context.Background(), "archives")
	if err == nil || !strings.Contains(err.Error(), "failed to check bucket archives") {
		t.Fatalf("expected check error, got %v", err)
	}
}

func TestPutObject(t *testing.T) {
	t.Parallel()
	var (
		mu         sync.Mutex
		body       []byte
		encryption string
	)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		encryption = r.Header.Get("X-Amz-Server-Side-Encryption")
		w.WriteHeader(http.StatusOK)
	}))

	data := []byte("name: letsencrypt-cloudflare")
	if err := client.PutObject(context.Background(), "archives", "dns/bundle/metadata.json", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(body, data) {
		t.Errorf("expected body %q, got %q", data, body)
	}
	if encryption != "AES256" {
		t.Errorf("expected AES256 encryption header, got %q", encryption)
	}
}

func TestPutObject_Error(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, http.StatusInternalServerError, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>InternalError</Code><Message>Internal Error</Message></Error>`)
	}))

	err := client.PutObject(context.Background(), "archives", "k", []byte("data"))
	if err == nil || !strings.Contains(err.Error(), "failed to put object k in bucket archives") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestListObjects(t *testing.T) {
	t.Parallel()
	var prefix string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix = r.URL.Query().Get("prefix")
		xmlResponse(w, http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>archives</Name>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>k8tenant/a/bundle.json</Key></Contents>
  <Contents><Key>k8tenant/b/bundle.json</Key></Contents>
</ListBucketResult>`)
	}))

	keys, err := client.ListObjects(context.Background(), "archives", "k8tenant/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "k8tenant/a/bundle.json" {
		t.Errorf("unexpected keys %v", keys)
	}
	if prefix != "k8tenant/" {
		t.Errorf("expected prefix to be sent, got %q", prefix)
	}
}

func TestIsBucketAlreadyOwnedByYou(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"wrapped typed error", fmt.Errorf("outer: %w", &s3types.BucketAlreadyOwnedByYou{}), true},
		{"generic error", fmt.Errorf("outer: %w", fmt.Errorf("inner")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isBucketAlreadyOwnedByYou(tt.err); got != tt.want {
				t.Errorf("isBucketAlreadyOwnedByYou() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"wrapped NoSuchBucket", fmt.Errorf("outer: %w", &s3types.NoSuchBucket{}), true},
		{"wrapped NotFound", fmt.Errorf("outer: %w", &s3types.NotFound{}), true},
		{"generic error", fmt.Errorf("outer: %w", fmt.Errorf("inner")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isNotFoundError(tt.err); got != tt.want {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.want)
			}
		})
	}
}
