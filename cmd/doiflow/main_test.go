package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeArchive serves the DOI endpoints and the presigned upload protocol.
type fakeArchive struct {
	mu        sync.Mutex
	created   map[string]any
	described string
	published []string
	tokens    []string
	stored    map[string][]byte
}

func newFakeArchive(t *testing.T) (*fakeArchive, *httptest.Server) {
	t.Helper()
	fa := &fakeArchive{stored: map[string][]byte{}}
	mux := http.NewServeMux()
	var srv *httptest.Server

	record := func(r *http.Request) {
		fa.mu.Lock()
		fa.tokens = append(fa.tokens, r.Header.Get("X-CSRFToken"))
		fa.mu.Unlock()
	}

	mux.HandleFunc("POST /api/v2/doi/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fa.mu.Lock()
		fa.created = body
		fa.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"slug":"abc-123"}`))
	})
	mux.HandleFunc("PATCH /api/v2/doi/{slug}/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fa.mu.Lock()
		fa.described = r.PathValue("slug") + ":" + body.Description
		fa.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /api/v2/doi/{slug}/publish/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("slug") == "busy" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"This DOI is already being published."}`))
			return
		}
		fa.mu.Lock()
		fa.published = append(fa.published, r.PathValue("slug"))
		fa.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{}`))
	})

	mux.HandleFunc("POST /api/v2/s3-upload/upload-initialize/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FileName string `json:"file_name"`
			FileSize int64  `json:"file_size"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object_key":       "uploads/" + req.FileName,
			"upload_id":        "up-1",
			"upload_signature": req.FileName,
			"parts": []map[string]any{
				{"part_number": 1, "size": req.FileSize, "upload_url": srv.URL + "/storage/" + req.FileName},
			},
		})
	})
	mux.HandleFunc("PUT /storage/{name}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		fa.mu.Lock()
		fa.stored[r.PathValue("name")] = data
		fa.mu.Unlock()
		w.Header().Set("ETag", `"etag-1"`)
	})
	mux.HandleFunc("POST /api/v2/s3-upload/upload-complete/", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"complete_url": srv.URL + "/storage-complete",
			"body":         "<CompleteMultipartUpload/>",
		})
	})
	mux.HandleFunc("POST /storage-complete", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("POST /api/v2/s3-upload/finalize/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UploadSignature string `json:"upload_signature"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"field_value": "signed:" + req.UploadSignature})
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fa, srv
}

func setEnv(t *testing.T, baseURL string) {
	t.Helper()
	for _, key := range []string{
		"DOIFLOW_ENV_FILE", "DOIFLOW_TOKEN_SECRET", "DOIFLOW_TOKEN_SECRET_KEY", "DOIFLOW_CSRF_PAGE",
		"DOIFLOW_TOKEN_HEADER", "DOIFLOW_UPLOAD_BACKEND", "DOIFLOW_BUCKET", "DOIFLOW_PREFIX",
		"DOIFLOW_REGION", "DOIFLOW_S3_ENDPOINT", "DOIFLOW_S3_PATH_STYLE", "DOIFLOW_MINIO_ENDPOINT",
		"DOIFLOW_MINIO_ACCESS_KEY", "DOIFLOW_MINIO_SECRET_KEY", "DOIFLOW_MINIO_SECURE", "DOIFLOW_TIMEOUT",
		"DOIFLOW_LOG_LEVEL", "DOIFLOW_TOKEN_SECRET_RETRIES", "DOIFLOW_SECRETS_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DOIFLOW_BASE_URL", baseURL+"/api/v2/")
	t.Setenv("DOIFLOW_TOKEN", "tok")
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"doiflow"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "unknown command", args: []string{"frobnicate"}, want: 2},
		{name: "help", args: []string{"help"}, want: 0},
		{name: "create without manifest", args: []string{"create"}, want: 2},
		{name: "attach without collection", args: []string{"attach", "a.txt"}, want: 2},
		{name: "describe without slug", args: []string{"describe"}, want: 2},
		{name: "publish without slug", args: []string{"publish"}, want: 2},
		{name: "size without value", args: []string{"size"}, want: 2},
		{name: "size not a number", args: []string{"size", "lots"}, want: 2},
		{name: "bad flag", args: []string{"publish", "-nope"}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := run(tt.args...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRun_Size(t *testing.T) {
	code, out, _ := run("size", "1536")
	assert.Equal(t, 0, code)
	assert.Equal(t, "1.5 KB\n", out)

	code, out, _ = run("size", "-decimals", "0", "1536")
	assert.Equal(t, 0, code)
	assert.Equal(t, "2 KB\n", out)
}

func TestRun_Relations(t *testing.T) {
	code, out, _ := run("relations")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "IsDescribedBy (one entry)")
	assert.Contains(t, out, "IsReferencedBy")
}

func TestRun_Create(t *testing.T) {
	fa, srv := newFakeArchive(t)
	setEnv(t, srv.URL)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("protocol notes"), 0o644))
	manifestPath := filepath.Join(dir, "doi.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`collection_id: 7
description: Dermoscopy set
files:
  - path: readme.txt
    description: Protocol
related_identifiers:
  - relation_type: IsDescribedBy
    identifier_type: DOI
    identifier: 10.1000/xyz
`), 0o644))

	code, out, errOut := run("create", "-manifest", manifestPath, "-publish")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "created DOI abc-123 with 1 supplemental file(s)")
	assert.Contains(t, out, "/doi/abc-123")
	assert.Contains(t, out, "publishing DOI abc-123")

	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.Equal(t, []byte("protocol notes"), fa.stored["readme.txt"])
	assert.Equal(t, float64(7), fa.created["collection_id"])
	assert.Equal(t, "Dermoscopy set", fa.created["description"])
	assert.Equal(t, []any{
		map[string]any{"blob": "signed:readme.txt", "description": "Protocol"},
	}, fa.created["supplemental_files"])
	assert.Equal(t, []any{
		map[string]any{
			"relation_type":           "IsDescribedBy",
			"related_identifier_type": "DOI",
			"related_identifier":      "10.1000/xyz",
		},
	}, fa.created["related_identifiers"])
	assert.Equal(t, []string{"abc-123"}, fa.published)
	for _, tok := range fa.tokens {
		assert.Equal(t, "tok", tok)
	}
}

func TestRun_Attach(t *testing.T) {
	fa, srv := newFakeArchive(t)
	setEnv(t, srv.URL)

	dir := t.TempDir()
	path := filepath.Join(dir, "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,label\n1,nevus\n"), 0o644))

	code, out, errOut := run("attach", "-collection", "9", path+"=Ground truth")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "attached 1 supplemental file(s)")
	assert.Contains(t, out, "/collections/9/")

	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.NotContains(t, fa.created, "description")
	assert.NotContains(t, fa.created, "related_identifiers")
	assert.Equal(t, []any{
		map[string]any{"blob": "signed:labels.csv", "description": "Ground truth"},
	}, fa.created["supplemental_files"])
}

func TestRun_AttachMissingFile(t *testing.T) {
	_, srv := newFakeArchive(t)
	setEnv(t, srv.URL)

	code, _, errOut := run("attach", "-collection", "9", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing.pdf")
}

func TestRun_DescribeAndPublish(t *testing.T) {
	fa, srv := newFakeArchive(t)
	setEnv(t, srv.URL)

	code, out, errOut := run("describe", "-slug", "abc-123", "-description", "Updated")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "updated description of DOI abc-123")

	code, _, errOut = run("publish", "-slug", "abc-123")
	require.Equal(t, 0, code, errOut)

	code, _, errOut = run("publish", "-slug", "busy")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "This DOI is already being published.")

	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.Equal(t, "abc-123:Updated", fa.described)
	assert.Equal(t, []string{"abc-123"}, fa.published)
}

func TestRun_ConfigErrors(t *testing.T) {
	_, srv := newFakeArchive(t)

	setEnv(t, srv.URL)
	t.Setenv("DOIFLOW_TOKEN", "")
	code, _, errOut := run("publish", "-slug", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no token configured")

	setEnv(t, srv.URL)
	t.Setenv("DOIFLOW_UPLOAD_BACKEND", "ftp")
	code, _, errOut = run("publish", "-slug", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown backend "ftp"`)

	setEnv(t, srv.URL)
	t.Setenv("DOIFLOW_TIMEOUT", "soon")
	code, _, errOut = run("publish", "-slug", "x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "DOIFLOW_TIMEOUT")
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings(func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, "https://api.isic-archive.com/api/v2/", s.BaseURL)
	assert.Equal(t, backendFieldFile, s.Backend)
}

func TestLoadSettings_SecretClient(t *testing.T) {
	tests := []struct {
		name    string
		retries string
		want    int
		wantErr bool
	}{
		{name: "unset", retries: "", want: 0},
		{name: "explicit", retries: "4", want: 4},
		{name: "zero", retries: "0", wantErr: true},
		{name: "not a number", retries: "many", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{
				"DOIFLOW_TOKEN_SECRET_RETRIES": tt.retries,
				"DOIFLOW_SECRETS_ENDPOINT":     "http://localhost:4566",
			}
			s, err := loadSettings(func(k string) string { return env[k] })
			if tt.wantErr {
				assert.ErrorContains(t, err, "DOIFLOW_TOKEN_SECRET_RETRIES")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.SecretRetries)
			assert.Equal(t, "http://localhost:4566", s.SecretsURL)
		})
	}
}
