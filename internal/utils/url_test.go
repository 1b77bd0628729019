package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *BucketURL
		wantErr bool
	}{
		{
			name: "naked bucket",
			url:  "s3://bucket",
			want: &BucketURL{Scheme: "s3", Bucket: "bucket", Path: "/"},
		},
		{
			name: "bucket with path",
			url:  "s3a://bucket/dir/sub/",
			want: &BucketURL{Scheme: "s3a", Bucket: "bucket", Path: "/dir/sub"},
		},
		{
			name: "bucket root slash",
			url:  "s3://bucket/",
			want: &BucketURL{Scheme: "s3", Bucket: "bucket", Path: "/"},
		},
		{
			name:    "invalid scheme",
			url:     "http://bucket/dir",
			wantErr: true,
		},
		{
			name:    "missing bucket",
			url:     "s3:///dir",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBucketURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBucketURLString(t *testing.T) {
	u := &BucketURL{Scheme: "s3", Bucket: "b", Path: "/x"}
	assert.Equal(t, "s3://b/x", u.String())
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("http://localhost:9000"))
	assert.True(t, IsValidURL("https://s3.example.com"))
	assert.False(t, IsValidURL("localhost:9000"))
	assert.False(t, IsValidURL("not a url"))
	assert.False(t, IsValidURL(""))
}
