package artifacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory ObjectClient used to test Store without
// reaching a real object store.
type fakeClient struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failGets int // number of GetObject calls to fail before succeeding
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeClient) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGets > 0 {
		f.failGets--
		return nil, errors.New("fake transient failure")
	}
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("fake: not found")
	}
	return data, nil
}

func (f *fakeClient) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok, nil
}

// storeWithFake builds a Store whose single "test-region" client is the
// given fake, bypassing RegionClients' real AWS construction path.
func storeWithFake(fc *fakeClient) *Store {
	rc := NewRegionClients()
	rc.Preload("test-region", fc)
	return NewStore(rc)
}

type rawBytes []byte

func (r rawBytes) Encode() []byte { return r }

func TestKey_DerivesPrefixedPath(t *testing.T) {
	assert.Equal(t, "programs/abc", Key(TypeProgram, "abc"))
	assert.Equal(t, "proofs/xyz", Key(TypeProof, "xyz"))
}

func TestStore_UploadThenDownloadRaw(t *testing.T) {
	fc := newFakeClient()
	store := storeWithFake(fc)
	ctx := context.Background()

	err := store.Upload(ctx, rawBytes("hello"), "bucket", "test-region", TypeProgram, "p1")
	require.NoError(t, err)

	data, err := store.DownloadRaw(ctx, "bucket", "test-region", TypeProgram, "p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestStore_DownloadRaw_MissingFailsAfterRetries(t *testing.T) {
	fc := newFakeClient()
	store := storeWithFake(fc)

	_, err := store.DownloadRaw(context.Background(), "bucket", "test-region", TypeProgram, "missing")
	require.Error(t, err)
}

func TestStore_DownloadRaw_SucceedsAfterTransientFailures(t *testing.T) {
	fc := newFakeClient()
	fc.objects["bucket/proofs/p1"] = []byte("proof-bytes")
	fc.failGets = 2
	store := storeWithFake(fc)

	data, err := store.DownloadRaw(context.Background(), "bucket", "test-region", TypeProof, "p1")
	require.NoError(t, err)
	assert.Equal(t, []byte("proof-bytes"), data)
}

func TestStore_DownloadRawFromURI_S3Scheme(t *testing.T) {
	fc := newFakeClient()
	fc.objects["my-bucket/programs/prog-1"] = []byte("program-bytes")
	store := storeWithFake(fc)

	data, err := store.DownloadRawFromURI(context.Background(), "s3://my-bucket/programs/prog-1", "test-region", TypeProgram)
	require.NoError(t, err)
	assert.Equal(t, []byte("program-bytes"), data)
}

func TestStore_DownloadRawFromURI_HTTPSScheme(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("https-bytes"))
	}))
	defer server.Close()

	store := storeWithFake(newFakeClient())
	store.httpClient = server.Client()
	data, err := store.DownloadRawFromURI(context.Background(), server.URL, "test-region", TypeStdin)
	require.NoError(t, err)
	assert.Equal(t, []byte("https-bytes"), data)
}

func TestStore_DownloadRawFromURI_RejectsUnknownScheme(t *testing.T) {
	store := storeWithFake(newFakeClient())
	_, err := store.DownloadRawFromURI(context.Background(), "ftp://bucket/x", "test-region", TypeStdin)
	require.Error(t, err)
}

func TestStore_Copy_SkipsWhenDestinationExists(t *testing.T) {
	src := newFakeClient()
	src.objects["src-bucket/proofs/p1"] = []byte("orig")
	dst := newFakeClient()
	dst.objects["dst-bucket/proofs/p1"] = []byte("already-there")

	rc := NewRegionClients()
	rc.Preload("src-region", src)
	rc.Preload("dst-region", dst)
	store := NewStore(rc)

	err := store.Copy(context.Background(), TypeProof, "p1", "src-bucket", "src-region", "dst-bucket", "dst-region")
	require.NoError(t, err)
	assert.Equal(t, []byte("already-there"), dst.objects["dst-bucket/proofs/p1"])
}

func TestStore_Copy_StreamsWhenDestinationMissing(t *testing.T) {
	src := newFakeClient()
	src.objects["src-bucket/proofs/p1"] = []byte("orig")
	dst := newFakeClient()

	rc := NewRegionClients()
	rc.Preload("src-region", src)
	rc.Preload("dst-region", dst)
	store := NewStore(rc)

	err := store.Copy(context.Background(), TypeProof, "p1", "src-bucket", "src-region", "dst-bucket", "dst-region")
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), dst.objects["dst-bucket/proofs/p1"])
}

func TestRegionClients_CachesPerRegion(t *testing.T) {
	fc := newFakeClient()
	rc := NewRegionClients()
	rc.Preload("cached", fc)

	got, err := rc.Get(context.Background(), "cached")
	require.NoError(t, err)
	assert.Same(t, ObjectClient(fc), got)
}
