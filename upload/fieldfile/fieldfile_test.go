package fieldfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImageMarkup/isic/auth"
	"github.com/ImageMarkup/isic/upload"
)

// fakeUploadAPI implements the upload API and the presigned storage endpoints.
type fakeUploadAPI struct {
	*httptest.Server

	partSize   int64
	failPart   int
	omitETag   bool
	sizeOffset int64

	mu            sync.Mutex
	init          initializeRequest
	parts         map[int][]byte
	completed     completeRequest
	completeBody  string
	finalized     string
	apiTokens     []string
	storageTokens []string
}

func newFakeUploadAPI(t *testing.T, partSize int64) *fakeUploadAPI {
	t.Helper()
	f := &fakeUploadAPI{partSize: partSize, parts: map[int][]byte{}}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v2/s3-upload/upload-initialize/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiTokens = append(f.apiTokens, r.Header.Get(auth.DefaultHeader))
		_ = json.NewDecoder(r.Body).Decode(&f.init)

		size := f.init.FileSize + f.sizeOffset
		resp := initializeResponse{
			ObjectKey:       "supplemental/" + f.init.FileName,
			UploadID:        "upload-1",
			UploadSignature: "sig-1",
		}
		for n, offset := 1, int64(0); offset < size || n == 1; n++ {
			s := min(f.partSize, size-offset)
			resp.Parts = append(resp.Parts, presignedPart{
				PartNumber: n,
				Size:       s,
				UploadURL:  fmt.Sprintf("%s/storage/part/%d?sig=abc", f.URL, n),
			})
			offset += s
			if s == 0 {
				break
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("PUT /storage/part/{n}", func(w http.ResponseWriter, r *http.Request) {
		var n int
		_, _ = fmt.Sscanf(r.PathValue("n"), "%d", &n)
		data, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.storageTokens = append(f.storageTokens, r.Header.Get(auth.DefaultHeader))
		if n == f.failPart {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.parts[n] = data
		if !f.omitETag {
			w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, n))
		}
	})

	mux.HandleFunc("POST /api/v2/s3-upload/upload-complete/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiTokens = append(f.apiTokens, r.Header.Get(auth.DefaultHeader))
		_ = json.NewDecoder(r.Body).Decode(&f.completed)
		_ = json.NewEncoder(w).Encode(completeResponse{
			CompleteURL: f.URL + "/storage/complete",
			Body:        "<CompleteMultipartUpload/>",
		})
	})

	mux.HandleFunc("POST /storage/complete", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completeBody = string(data)
	})

	mux.HandleFunc("POST /api/v2/s3-upload/finalize/", func(w http.ResponseWriter, r *http.Request) {
		var req finalizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiTokens = append(f.apiTokens, r.Header.Get(auth.DefaultHeader))
		f.finalized = req.UploadSignature
		_ = json.NewEncoder(w).Encode(finalizeResponse{FieldValue: "signed:" + f.init.FileName})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeUploadAPI) assembled() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]int, 0, len(f.parts))
	for k := range f.parts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.Write(f.parts[k])
	}
	return sb.String()
}

func newClient(t *testing.T, f *fakeUploadAPI) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:     f.URL + "/api/v2/s3-upload",
		HTTPClient:  f.Client(),
		Auth:        auth.Context{Header: auth.DefaultHeader, Token: "tok"},
		Concurrency: 2,
	})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Config{BaseURL: "s3-upload/"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "https://example.com/api/v2/s3-upload"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/s3-upload/", c.base.Path)
	assert.Equal(t, DefaultConcurrency, c.concurrency)
}

func TestClient_Upload(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		partSize  int64
		wantParts int
	}{
		{name: "single part", content: "hello world", partSize: 1024, wantParts: 1},
		{name: "several parts", content: strings.Repeat("abcdefghij", 5) + "xyz", partSize: 10, wantParts: 6},
		{name: "empty file", content: "", partSize: 10, wantParts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeUploadAPI(t, tt.partSize)
			c := newClient(t, api)

			h, err := c.Upload(context.Background(),
				upload.NewMemoryFile("notes.txt", []byte(tt.content)), upload.FieldSupplementalFile)
			require.NoError(t, err)

			assert.Equal(t, "signed:notes.txt", h.Value)
			assert.Equal(t, "supplemental/notes.txt", h.Key)

			assert.Equal(t, upload.FieldSupplementalFile, api.init.FieldID)
			assert.Equal(t, int64(len(tt.content)), api.init.FileSize)
			assert.Equal(t, "text/plain; charset=utf-8", api.init.ContentType)

			assert.Equal(t, tt.content, api.assembled())
			require.Len(t, api.completed.Parts, tt.wantParts)
			for i, p := range api.completed.Parts {
				assert.Equal(t, i+1, p.PartNumber)
				assert.Equal(t, fmt.Sprintf(`"etag-%d"`, i+1), p.ETag)
			}
			assert.Equal(t, "upload-1", api.completed.UploadID)
			assert.Equal(t, "sig-1", api.completed.UploadSignature)
			assert.Equal(t, "<CompleteMultipartUpload/>", api.completeBody)
			assert.Equal(t, "sig-1", api.finalized)

			assert.Equal(t, []string{"tok", "tok", "tok"}, api.apiTokens)
			for _, tok := range api.storageTokens {
				assert.Empty(t, tok)
			}
		})
	}
}

func TestClient_UploadFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fakeUploadAPI)
		errContains string
	}{
		{
			name:        "storage rejects a part",
			setup:       func(f *fakeUploadAPI) { f.failPart = 2 },
			errContains: "part 2: storage returned status 403",
		},
		{
			name:        "missing etag",
			setup:       func(f *fakeUploadAPI) { f.omitETag = true },
			errContains: "no ETag",
		},
		{
			name:        "parts do not cover file",
			setup:       func(f *fakeUploadAPI) { f.sizeOffset = 5 },
			errContains: "parts cover",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeUploadAPI(t, 4)
			tt.setup(api)
			c := newClient(t, api)

			_, err := c.Upload(context.Background(),
				upload.NewMemoryFile("data.bin", []byte("0123456789")), upload.FieldSupplementalFile)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			assert.Empty(t, api.finalized)
		})
	}
}

func TestClient_UploadInitializeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"field_id":["Invalid field"]}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/s3-upload/", HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), upload.NewMemoryFile("a.txt", []byte("x")), "bogus.field")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload-initialize/ returned status 400")
	assert.Contains(t, err.Error(), "Invalid field")
}
