package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metrics"
	"github.com/openmined/metaguard/internal/version"
)

const delimiter = "/"

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
}

// S3Source maps a bucket onto a directory tree. Keys are split on "/";
// directories exist either as common prefixes or as zero-byte marker
// objects whose key ends in "/".
type S3Source struct {
	client S3API
	bucket string
}

func NewS3Source(client S3API, bucket string) *S3Source {
	return &S3Source{client: client, bucket: bucket}
}

// NewS3SourceWithConfig builds an S3 client from cfg.
func NewS3SourceWithConfig(ctx context.Context, cfg *S3Config) (*S3Source, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
		config.WithAppID(version.UserAgent()),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return NewS3Source(client, cfg.Bucket), nil
}

// Location returns the bucket region as reported by S3.
func (s *S3Source) Location(ctx context.Context) (string, error) {
	start := time.Now()
	resp, err := s.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(s.bucket),
	})
	metrics.ObserveRemoteOp("get_bucket_location", start, err)
	if err != nil {
		return "", err
	}
	// an empty constraint means us-east-1
	if resp.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(resp.LocationConstraint), nil
}

func (s *S3Source) Stat(ctx context.Context, path string) (meta.PathEntry, error) {
	path = meta.Clean(path)
	if meta.IsRoot(path) {
		return meta.NewDir(meta.Root), nil
	}
	key := meta.ToKey(path)

	start := time.Now()
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		metrics.ObserveRemoteOp("head_object", start, nil)
		return meta.NewFile(path, aws.ToInt64(head.ContentLength), meta.ModTimeMillis(aws.ToTime(head.LastModified))), nil
	}
	if !isNotFound(err) {
		metrics.ObserveRemoteOp("head_object", start, err)
		return meta.PathEntry{}, fmt.Errorf("head %s: %w", path, err)
	}
	metrics.ObserveRemoteOp("head_object", start, nil)

	// no object at the key, look for anything under key/ (including a marker)
	start = time.Now()
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key + delimiter),
		MaxKeys: aws.Int32(1),
	})
	metrics.ObserveRemoteOp("list_objects", start, err)
	if err != nil {
		return meta.PathEntry{}, fmt.Errorf("list %s: %w", path, err)
	}
	if len(resp.Contents) > 0 || len(resp.CommonPrefixes) > 0 {
		return meta.NewDir(path), nil
	}

	return meta.PathEntry{}, fmt.Errorf("stat %s: %w", path, meta.ErrNotFound)
}

func (s *S3Source) ListChildren(ctx context.Context, path string) ([]meta.PathEntry, error) {
	prefix := dirPrefix(path)

	var children []meta.PathEntry
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})

	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		metrics.ObserveRemoteOp("list_objects", start, err)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", meta.Clean(path), err)
		}

		for _, cp := range page.CommonPrefixes {
			children = append(children, meta.NewDir(meta.FromKey(aws.ToString(cp.Prefix))))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// the directory's own marker
			if key == prefix {
				continue
			}
			children = append(children, objectEntry(obj))
		}
	}

	return fileWins(children), nil
}

// fileWins resolves a key that is both an object and a prefix of other keys.
// Stat resolves such a path to the file, so listings drop the directory and
// everything below it. The result is sorted by path.
func fileWins(entries []meta.PathEntry) []meta.PathEntry {
	files := make(map[string]bool)
	for _, e := range entries {
		if e.IsFile() {
			files[e.Path] = true
		}
	}

	out := entries[:0]
	for _, e := range entries {
		if e.IsDir() && files[e.Path] {
			slog.Warn("s3 key is both a file and a directory, keeping the file", "path", e.Path)
			continue
		}
		if shadowed(files, e.Path) {
			slog.Warn("s3 key is below a file, skipping", "path", e.Path)
			continue
		}
		out = append(out, e)
	}

	sortEntries(out)
	return out
}

func shadowed(files map[string]bool, path string) bool {
	for dir, ok := meta.Parent(path); ok && !meta.IsRoot(dir); dir, ok = meta.Parent(dir) {
		if files[dir] {
			return true
		}
	}
	return false
}

func (s *S3Source) ListRecursive(ctx context.Context, path string) ([]meta.PathEntry, error) {
	prefix := dirPrefix(path)

	var objects []types.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		metrics.ObserveRemoteOp("list_objects", start, err)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", meta.Clean(path), err)
		}
		objects = append(objects, page.Contents...)
	}

	// keys arrive in lexicographic order, so a marker is empty exactly when
	// the next key does not extend it
	var entries []meta.PathEntry
	for i, obj := range objects {
		key := aws.ToString(obj.Key)
		if key == prefix {
			continue
		}
		if strings.HasSuffix(key, delimiter) {
			if i+1 < len(objects) && strings.HasPrefix(aws.ToString(objects[i+1].Key), key) {
				continue
			}
		}
		entries = append(entries, objectEntry(obj))
	}

	return fileWins(entries), nil
}

func objectEntry(obj types.Object) meta.PathEntry {
	key := aws.ToString(obj.Key)
	if strings.HasSuffix(key, delimiter) {
		return meta.NewDir(meta.FromKey(key))
	}
	return meta.NewFile(meta.FromKey(key), aws.ToInt64(obj.Size), meta.ModTimeMillis(aws.ToTime(obj.LastModified)))
}

func dirPrefix(path string) string {
	key := meta.ToKey(path)
	if key == "" {
		return ""
	}
	return key + delimiter
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ Source = (*S3Source)(nil)
