package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"robin.jpg", "robin.jpg"},
		{"Mésange Bleue.JPG", "mesange-bleue.jpg"},
		{"  hello!!world  .png", "hello-world.png"},
		{"ﬁnch.gif", "finch.gif"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\Pictures\Heron.webp`, "heron.webp"},
		{"photo.tar.gz", "photo-tar.gz"},
		{"日本.png", "image.png"},
		{"", "image"},
		{"---", "image"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300) + ".png")
	if len(got) != maxNameLen+len(".png") {
		t.Errorf("len = %d, want %d", len(got), maxNameLen+len(".png"))
	}
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	got := ObjectKey(PrefixCollections, "user1", "Blue Jay.PNG", at)
	want := "collections/user1/1700000000123-blue-jay.png"
	if got != want {
		t.Errorf("ObjectKey() = %q, want %q", got, want)
	}
}

func TestIsImage(t *testing.T) {
	tests := map[string]bool{
		"image/png":       true,
		"IMAGE/JPEG":      true,
		"image/webp":      true,
		"text/html":       false,
		"application/pdf": false,
		"":                false,
	}
	for ct, want := range tests {
		if got := IsImage(ct); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestValidKey(t *testing.T) {
	tests := map[string]bool{
		"posts/u1/1-a.png": true,
		"a":                true,
		"":                 false,
		"/abs":             false,
		"a/../b":           false,
		"a//b":             false,
		`a\b`:              false,
	}
	for key, want := range tests {
		if got := validKey(key); got != want {
			t.Errorf("validKey(%q) = %v, want %v", key, got, want)
		}
	}
}

// =========================================================================
// LOCAL BACKEND TESTS
// =========================================================================

func TestLocal_PutDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, "/uploads/")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()
	key := "posts/u1/1-robin.png"

	url, err := store.Put(ctx, key, strings.NewReader("pngdata"), 7, "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "/uploads/posts/u1/1-robin.png" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(root, "posts", "u1", "1-robin.png"))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "pngdata" {
		t.Errorf("stored %q, want %q", data, "pngdata")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "posts", "u1", "1-robin.png")); !os.IsNotExist(err) {
		t.Errorf("file still exists after Delete(): %v", err)
	}

	// Deleting again is fine.
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestLocal_SizeMismatchLeavesNothing(t *testing.T) {
	root := t.TempDir()
	store, _ := NewLocal(root, "/uploads")

	_, err := store.Put(context.Background(), "posts/x.png", strings.NewReader("short"), 100, "image/png")
	if err == nil {
		t.Fatal("Put() with a size mismatch should fail")
	}

	entries, _ := os.ReadDir(filepath.Join(root, "posts"))
	if len(entries) != 0 {
		t.Errorf("upload dir has %d leftover entries, want 0", len(entries))
	}
}

func TestLocal_RejectsTraversal(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), "/uploads")

	_, err := store.Put(context.Background(), "../escape.png", strings.NewReader("x"), 1, "image/png")
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put() error = %v, want ErrInvalidKey", err)
	}
	if err := store.Delete(context.Background(), "../escape.png"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Delete() error = %v, want ErrInvalidKey", err)
	}
}

// =========================================================================
// MINIO BACKEND TESTS
// =========================================================================

// Set TEST_MINIO_ENDPOINT (plus TEST_MINIO_ACCESS_KEY / TEST_MINIO_SECRET_KEY)
// to run against a real server, e.g. `docker run -p 9000:9000 minio/minio server /data`.
func TestMinIO_PutDelete(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set; skipping MinIO tests")
	}
	ctx := context.Background()
	store, err := NewMinIO(ctx, MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("TEST_MINIO_SECRET_KEY"),
		Bucket:    "bird-dropper-test",
	})
	if err != nil {
		t.Fatalf("NewMinIO() error = %v", err)
	}

	key := ObjectKey(PrefixPosts, "test", "minio.png", time.Now())
	url, err := store.Put(ctx, key, strings.NewReader("pngdata"), 7, "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasSuffix(url, "/bird-dropper-test/"+key) {
		t.Errorf("url = %q, want it to end in bucket/key", url)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

// fakeBucketAdmin records the calls ensureBucket makes.
type fakeBucketAdmin struct {
	exists   bool
	makeErr  error
	made     []string
	policies map[string]string
}

func (f *fakeBucketAdmin) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, nil
}

func (f *fakeBucketAdmin) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	if f.makeErr != nil {
		return f.makeErr
	}
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeBucketAdmin) SetBucketPolicy(ctx context.Context, bucket, policy string) error {
	if f.policies == nil {
		f.policies = map[string]string{}
	}
	f.policies[bucket] = policy
	return nil
}

func TestEnsureBucket_NewBucketIsPublicRead(t *testing.T) {
	admin := &fakeBucketAdmin{}
	if err := ensureBucket(context.Background(), admin, "birds"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if len(admin.made) != 1 || admin.made[0] != "birds" {
		t.Errorf("made = %v, want [birds]", admin.made)
	}

	raw, ok := admin.policies["birds"]
	if !ok {
		t.Fatal("no policy set on a freshly created bucket")
	}
	var policy bucketPolicy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		t.Fatalf("policy is not JSON: %v", err)
	}
	if len(policy.Statement) != 1 {
		t.Fatalf("len(Statement) = %d, want 1", len(policy.Statement))
	}
	st := policy.Statement[0]
	if st.Effect != "Allow" {
		t.Errorf("Effect = %q, want %q", st.Effect, "Allow")
	}
	if len(st.Principal["AWS"]) != 1 || st.Principal["AWS"][0] != "*" {
		t.Errorf("Principal = %v, want anyone", st.Principal)
	}
	if len(st.Action) != 1 || st.Action[0] != "s3:GetObject" {
		t.Errorf("Action = %v, want only s3:GetObject", st.Action)
	}
	if len(st.Resource) != 1 || st.Resource[0] != "arn:aws:s3:::birds/*" {
		t.Errorf("Resource = %v, want arn:aws:s3:::birds/*", st.Resource)
	}
}

func TestEnsureBucket_ExistingBucketUntouched(t *testing.T) {
	admin := &fakeBucketAdmin{exists: true}
	if err := ensureBucket(context.Background(), admin, "birds"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if len(admin.made) != 0 || len(admin.policies) != 0 {
		t.Errorf("existing bucket was modified: made=%v policies=%v", admin.made, admin.policies)
	}
}

func TestEnsureBucket_MakeFails(t *testing.T) {
	admin := &fakeBucketAdmin{makeErr: errors.New("denied")}
	err := ensureBucket(context.Background(), admin, "birds")
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Errorf("ensureBucket() error = %v, want wrapped 'denied'", err)
	}
	if len(admin.policies) != 0 {
		t.Error("policy must not be set when the bucket could not be created")
	}
}
