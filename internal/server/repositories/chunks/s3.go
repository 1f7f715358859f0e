package chunks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/avbaranovs/schoolcast/internal/common"
	"github.com/avbaranovs/schoolcast/internal/server/models"
)

// S3Repository stores chunks as individual objects in an S3-compatible bucket
// (MinIO in development), one object per chunk under chunks/<fileID>/<seq>.
type S3Repository struct {
	client *s3.Client
	bucket string
}

// S3Config holds the settings needed to reach the object storage backend.
type S3Config struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// NewS3Repository builds an S3-backed chunk repository.
func NewS3Repository(ctx context.Context, c S3Config) (*S3Repository, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.RootUser, c.RootPassword, "")))
	if err != nil {
		return nil, fmt.Errorf("s3 config error: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Repository{client: client, bucket: c.Bucket}, nil
}

func chunkKey(fileID string, seq int) string {
	return fmt.Sprintf("chunks/%s/%010d", fileID, seq)
}

func filePrefix(fileID string) string {
	return "chunks/" + fileID + "/"
}

func (r *S3Repository) Insert(ctx context.Context, chunk *models.Chunk) error {
	key := chunkKey(chunk.FileID, chunk.Seq)
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(chunk.Data),
	})
	if err != nil {
		return fmt.Errorf("s3 put error: %w", err)
	}
	return nil
}

func (r *S3Repository) Get(ctx context.Context, fileID string, seq int) (*models.Chunk, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(chunkKey(fileID, seq)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get error: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read error: %w", err)
	}
	return &models.Chunk{FileID: fileID, Seq: seq, Data: data, Length: len(data)}, nil
}

func (r *S3Repository) listObjects(ctx context.Context, prefix string, fn func(types.Object)) error {
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list error: %w", err)
		}
		for _, obj := range page.Contents {
			fn(obj)
		}
	}
	return nil
}

func (r *S3Repository) Stats(ctx context.Context, fileID string) (Stats, error) {
	var s Stats
	err := r.listObjects(ctx, filePrefix(fileID), func(obj types.Object) {
		s.ChunkCount++
		if obj.Size != nil {
			s.TotalLength += *obj.Size
		}
	})
	if err != nil {
		return Stats{}, err
	}
	return s, nil
}

func (r *S3Repository) DeleteAll(ctx context.Context, fileID string) error {
	var keys []types.ObjectIdentifier
	err := r.listObjects(ctx, filePrefix(fileID), func(obj types.Object) {
		keys = append(keys, types.ObjectIdentifier{Key: obj.Key})
	})
	if err != nil {
		return err
	}

	// DeleteObjects accepts at most 1000 keys per call.
	for len(keys) > 0 {
		batch := keys
		if len(batch) > 1000 {
			batch = keys[:1000]
		}
		keys = keys[len(batch):]

		_, err := r.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(r.bucket),
			Delete: &types.Delete{Objects: batch},
		})
		if err != nil {
			return fmt.Errorf("s3 delete error: %w", err)
		}
	}
	return nil
}

func (r *S3Repository) ListStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	newest := make(map[string]time.Time)
	err := r.listObjects(ctx, "chunks/", func(obj types.Object) {
		if obj.Key == nil || obj.LastModified == nil {
			return
		}
		// key layout: chunks/<fileID>/<seq>
		fileID := path.Base(path.Dir(*obj.Key))
		if fileID == "" || strings.Contains(fileID, "/") {
			return
		}
		if obj.LastModified.After(newest[fileID]) {
			newest[fileID] = *obj.LastModified
		}
	})
	if err != nil {
		return nil, err
	}

	var result []string
	for fileID, at := range newest {
		if at.Before(olderThan) {
			result = append(result, fileID)
		}
	}
	return result, nil
}
