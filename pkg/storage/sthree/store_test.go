package sthree

import (
	"context"
	"encoding/xml"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/storage"
	"github.com/nc6/cvmfs/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "acme"

// fakeS3 serves a single path-style bucket from memory
type fakeS3 struct {
	mx      sync.Mutex
	objects map[string][]byte
}

type listBucketResult struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Name     string   `xml:"Name"`
	Contents []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
	IsTruncated bool `xml:"IsTruncated"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mx.Lock()
	defer f.mx.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	if !strings.HasPrefix(p, testBucket) {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(p, testBucket), "/")

	switch {
	case key == "" && r.Method == http.MethodGet:
		var res listBucketResult
		res.Name = testBucket
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, struct {
				Key  string `xml:"Key"`
				Size int    `xml:"Size"`
			}{Key: k, Size: len(f.objects[k])})
		}
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(res)
	case r.Method == http.MethodPut:
		b, _ := ioutil.ReadAll(r.Body)
		f.objects[key] = b
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		b, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		b, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		_, _ = w.Write(b)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
	}
}

func writeS3Error(w http.ResponseWriter, code int, s3code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + s3code + `</Code><Message>` + s3code + `</Message></Error>`))
}

func setupStore(t *testing.T) storage.Store {
	srv := httptest.NewServer(&fakeS3{objects: map[string][]byte{
		"sixteentons": []byte("this is the text"),
	}})
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	cfg := Config{Host: host, Port: p, AccessKey: "access", SecretKey: "secret", Region: defaultRegion}

	bs, err := New(Bucket(testBucket), AWSConfig(cfg.AWS()))
	require.NoError(t, err)
	return bs
}

func TestStore(t *testing.T) {
	bs := setupStore(t)
	ctx := context.Background()
	assert.Equal(t, "s3@acme", bs.String())

	has, err := bs.Has(ctx, "sixteentons")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = bs.Has(ctx, "fifteentons")
	require.NoError(t, err)
	assert.False(t, has)

	b, err := storage.ReadAll(ctx, bs, "sixteentons")
	require.NoError(t, err)
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(ctx, "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))

	require.NoError(t, storage.PutBytes(ctx, bs, ".cvmfswhitelist", []byte("signed")))
	b, err = storage.ReadAll(ctx, bs, ".cvmfswhitelist")
	require.NoError(t, err)
	assert.Equal(t, "signed", string(b))

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{".cvmfswhitelist", "sixteentons"}, keys)

	require.NoError(t, bs.Delete(ctx, "sixteentons"))
	keys, err = bs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{".cvmfswhitelist"}, keys)
}

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/cvmfs/acme.s3.conf", []byte(`CVMFS_S3_HOST=s3.example.org
CVMFS_S3_PORT=9000
CVMFS_S3_ACCESS_KEY=AKIA
CVMFS_S3_SECRET_KEY="s3cr3t"
CVMFS_S3_USE_HTTPS=false
`), 0600))

	cfg, err := LoadConfig(fs, "/etc/cvmfs/acme.s3.conf")
	require.NoError(t, err)
	assert.Equal(t, Config{
		Host:      "s3.example.org",
		Port:      9000,
		AccessKey: "AKIA",
		SecretKey: "s3cr3t",
		Region:    defaultRegion,
	}, cfg)
	assert.Equal(t, "http://s3.example.org:9000", cfg.Endpoint())
	assert.Equal(t, "https://s3.example.org", Config{Host: "s3.example.org", UseHTTPS: true}.Endpoint())

	require.NoError(t, afero.WriteFile(fs, "/etc/cvmfs/broken.s3.conf", []byte("CVMFS_S3_HOST=s3.example.org\n"), 0600))
	_, err = LoadConfig(fs, "/etc/cvmfs/broken.s3.conf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidConfig))

	_, err = LoadConfig(fs, "/etc/cvmfs/missing.s3.conf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidConfig))
}

func TestToSentinelErrors(t *testing.T) {
	for _, toPin := range []struct {
		Code     string
		Status   int
		Sentinel error
	}{
		{Code: "NoSuchKey", Status: 404, Sentinel: status.ErrNotExists},
		{Code: "Other", Status: 404, Sentinel: status.ErrNotFound},
		{Code: "InvalidBucketName", Status: 400, Sentinel: status.ErrInvalidResource},
		{Code: "AccessDenied", Status: 403, Sentinel: status.ErrForbidden},
		{Code: "Unauthorized", Status: 401, Sentinel: status.ErrUnauthorized},
		{Code: "SlowDown", Status: 503, Sentinel: status.ErrStorageAPI},
	} {
		fixture := toPin
		t.Run(fixture.Code, func(t *testing.T) {
			err := toSentinelErrors(awserr.NewRequestFailure(awserr.New(fixture.Code, "test", nil), fixture.Status, "req"))
			assert.True(t, errors.Is(err, fixture.Sentinel))
		})
	}
	assert.NoError(t, toSentinelErrors(nil))
}
