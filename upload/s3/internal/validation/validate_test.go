package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ImageMarkup/isic/upload/s3/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		wantErr bool
	}{
		{name: "simple", bucket: "isic-supplemental"},
		{name: "with dots", bucket: "isic.archive.uploads"},
		{name: "starts with digit", bucket: "1isic"},
		{name: "too short", bucket: "ab", wantErr: true},
		{name: "too long", bucket: strings.Repeat("a", 64), wantErr: true},
		{name: "uppercase", bucket: "Isic", wantErr: true},
		{name: "underscore", bucket: "isic_uploads", wantErr: true},
		{name: "leading hyphen", bucket: "-isic", wantErr: true},
		{name: "trailing dot", bucket: "isic.", wantErr: true},
		{name: "adjacent dots", bucket: "isic..uploads", wantErr: true},
		{name: "dot hyphen", bucket: "isic.-uploads", wantErr: true},
		{name: "ip address", bucket: "192.168.1.10", wantErr: true},
		{name: "reserved prefix", bucket: "xn--isic", wantErr: true},
		{name: "reserved suffix", bucket: "isic-s3alias", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidBucketName)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "nested", key: "supplemental/3f2a/readme.pdf"},
		{name: "dots inside a name", key: "supplemental/a..b.txt"},
		{name: "unicode", key: "supplemental/légende.txt"},
		{name: "empty", key: "", wantErr: true},
		{name: "absolute", key: "/etc/passwd", wantErr: true},
		{name: "traversal", key: "supplemental/../../secret", wantErr: true},
		{name: "leading traversal", key: "../secret", wantErr: true},
		{name: "control character", key: "supplemental/a\x00b", wantErr: true},
		{name: "too long", key: strings.Repeat("k", MaxKeyLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidObjectKey)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	assert.NoError(t, ValidateContentType(""))
	assert.NoError(t, ValidateContentType("application/pdf"))
	assert.NoError(t, ValidateContentType("text/plain; charset=utf-8"))
	assert.NoError(t, ValidateContentType("application/vnd.ms-excel"))
	assert.ErrorIs(t, ValidateContentType("not a type"), errors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateContentType("text/"), errors.ErrInvalidInput)
}

func TestSanitizeKeySegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "readme.pdf", want: "readme.pdf"},
		{in: "dir/readme.pdf", want: "readme.pdf"},
		{in: `C:\Users\me\data.csv`, want: "data.csv"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: "..", want: "file"},
		{in: ".hidden", want: "hidden"},
		{in: "tab\tname.txt", want: "tabname.txt"},
		{in: "", want: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SanitizeKeySegment(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, ValidateObjectKey("prefix/"+got))
		})
	}
}

func TestSanitizeMetadata(t *testing.T) {
	assert.Nil(t, SanitizeMetadata(nil))

	got := SanitizeMetadata(map[string]string{
		"Original-Name": "légende\n.txt",
		"\x01":          "dropped key",
		"field":         "core.SupplementalFile.blob",
	})
	assert.Equal(t, map[string]string{
		"original-name": "lgende.txt",
		"field":         "core.SupplementalFile.blob",
	}, got)
}
