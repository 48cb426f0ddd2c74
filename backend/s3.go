package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"linkfetch/internal"
	"linkfetch/remote"
)

// S3Config configures an S3Store
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
	ExportTTL time.Duration
	// HTTPClient is used for every API call when set
	HTTPClient aws.HTTPClient
}

// S3Store serves s3://bucket/prefix links. Folder handles are key paths
// relative to the opened prefix.
type S3Store struct {
	bucket    string
	client    *s3.Client
	presign   *s3.PresignClient
	exportTTL time.Duration
}

// NewS3Store creates a store for bucket
func NewS3Store(ctx context.Context, bucket string, cfg S3Config) (*S3Store, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ExportTTL <= 0 {
		cfg.ExportTTL = time.Hour
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(cfg.HTTPClient))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Store{
		bucket:    bucket,
		client:    client,
		presign:   s3.NewPresignClient(client),
		exportTTL: cfg.ExportTTL,
	}, nil
}

func folderPrefix(location string) string {
	location = strings.TrimPrefix(location, "/")
	if location != "" && !strings.HasSuffix(location, "/") {
		location += "/"
	}
	return location
}

// Open lists every key under the link's prefix and builds the folder tree
func (s *S3Store) Open(ctx context.Context, link *internal.LinkInfo) (*Tree, error) {
	prefix := folderPrefix(link.Location)

	rootName := s.bucket
	if prefix != "" {
		rootName = path.Base(strings.TrimSuffix(prefix, "/"))
	}
	root := NewFolderNode(".", rootName, prefix)
	folders := map[string]*Node{".": root}

	var ensureFolder func(rel string) *Node
	ensureFolder = func(rel string) *Node {
		if rel == "." || rel == "" {
			return root
		}
		if f, ok := folders[rel]; ok {
			return f
		}
		parent := ensureFolder(path.Dir(rel))
		f := NewFolderNode(rel, path.Base(rel), prefix+rel+"/")
		parent.Add(f)
		folders[rel] = f
		return f
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyS3Error(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, prefix)
			if rel == "" {
				continue
			}
			if strings.HasSuffix(rel, "/") {
				ensureFolder(strings.TrimSuffix(rel, "/"))
				continue
			}
			parent := ensureFolder(path.Dir(rel))
			parent.Add(NewFileNode(rel, path.Base(rel), key, aws.ToInt64(obj.Size)))
		}
	}

	root.SortChildren()
	return NewTree(root), nil
}

// Resolve heads the object of a file link
func (s *S3Store) Resolve(ctx context.Context, link *internal.LinkInfo) (*Node, error) {
	key := strings.TrimPrefix(link.Location, "/")
	if key == "" {
		return nil, fmt.Errorf("s3://%s has no object key", s.bucket)
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	handle := "s3://" + s.bucket + "/" + key
	return NewFileNode(handle, path.Base(key), key, aws.ToInt64(out.ContentLength)), nil
}

// Reader gets the object from offset to the end
func (s *S3Store) Reader(ctx context.Context, node *Node, offset int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(node.Location()),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, classifyS3Error(err)
	}
	return out.Body, nil
}

// Export presigns a GET for a file. Folders have no presigned form.
func (s *S3Store) Export(ctx context.Context, node *Node) (string, error) {
	if node.Kind() == remote.KindFolder {
		return "s3://" + s.bucket + "/" + node.Location(), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(node.Location()),
	}, s3.WithPresignExpires(s.exportTTL))
	if err != nil {
		return "", classifyS3Error(err)
	}
	return req.URL, nil
}

// Account reports object counts and bytes under the opened prefix
func (s *S3Store) Account(ctx context.Context, tree *Tree) (*remote.AccountDetails, error) {
	files, folders, used := tree.Totals()
	return &remote.AccountDetails{
		StorageUsed: used,
		Files:       files,
		Folders:     folders,
		CapturedAt:  time.Now(),
	}, nil
}

func (s *S3Store) Close() error { return nil }

// classifyS3Error maps throttling and missing-object responses onto
// ErrThrottled and ErrNotFound
func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequests":
			return fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.ErrorCode())
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusServiceUnavailable, http.StatusTooManyRequests:
			return fmt.Errorf("%w: HTTP %d", ErrThrottled, respErr.HTTPStatusCode())
		case http.StatusNotFound:
			return fmt.Errorf("%w: HTTP 404", ErrNotFound)
		}
	}
	return err
}
