package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// BucketURL is a parsed s3://bucket/path URL
type BucketURL struct {
	Scheme string
	Bucket string
	Path   string
}

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// String returns the string representation of the BucketURL
func (b *BucketURL) String() string {
	return fmt.Sprintf("%s://%s%s", b.Scheme, b.Bucket, b.Path)
}

// ParseBucketURL parses an s3:// or s3a:// URL. A naked bucket URL refers to
// the bucket root "/".
func ParseBucketURL(rawURL string) (*BucketURL, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("not a valid bucket path %q: %w", rawURL, err)
	}

	switch parsedURL.Scheme {
	case "s3", "s3a":
	default:
		return nil, &ValidationError{
			Field:   "scheme",
			Message: fmt.Sprintf("expected 's3' or 's3a', got '%s'", parsedURL.Scheme),
		}
	}

	if parsedURL.Host == "" {
		return nil, &ValidationError{
			Field:   "bucket",
			Message: "bucket cannot be empty",
		}
	}

	path := parsedURL.Path
	if path == "" {
		path = "/"
	} else if len(path) > 1 {
		path = "/" + strings.Trim(path, "/")
	}

	return &BucketURL{
		Scheme: parsedURL.Scheme,
		Bucket: parsedURL.Host,
		Path:   path,
	}, nil
}

// IsValidURL reports whether s is an absolute http(s) URL with a host
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
