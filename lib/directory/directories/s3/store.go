package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/caddyserver/caddy/v2"

	"gfx.cafe/gfx/dbchain/lib/directory"
)

func init() {
	caddy.RegisterModule((*Store)(nil))
}

// API is the subset of the S3 client used by Store.
type API interface {
	awss3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Store keeps one JSON object per record at <prefix>/<owner>/<key>.json.
type Store struct {
	Config

	api API
}

// New returns a Store using api. It is mostly useful with a non AWS client.
func New(config Config, api API) *Store {
	return &Store{
		Config: config,
		api:    api,
	}
}

func (*Store) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.directories.s3",
		New: func() caddy.Module {
			return new(Store)
		},
	}
}

func (T *Store) Provision(ctx caddy.Context) error {
	if T.Bucket == "" {
		return errors.New("s3 directory: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if T.Region != "" {
		opts = append(opts, awsconfig.WithRegion(T.Region))
	}
	if T.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(T.AccessKeyID, T.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("loading aws config: %w", err)
	}

	T.api = awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if T.Endpoint != "" {
			o.BaseEndpoint = aws.String(T.Endpoint)
		}
		o.UsePathStyle = T.UsePathStyle
	})
	return nil
}

func (T *Store) ownerPrefix(owner string) string {
	return path.Join(T.Prefix, owner) + "/"
}

func (T *Store) objectKey(owner, key string) string {
	return T.ownerPrefix(owner) + key + ".json"
}

func (T *Store) list(ctx context.Context, owner string, fn func(objectKey, key string) error) error {
	prefix := T.ownerPrefix(owner)
	paginator := awss3.NewListObjectsV2Paginator(T.api, &awss3.ListObjectsV2Input{
		Bucket: aws.String(T.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, object := range page.Contents {
			objectKey := aws.ToString(object.Key)
			key, ok := strings.CutSuffix(strings.TrimPrefix(objectKey, prefix), ".json")
			if !ok || strings.Contains(key, "/") {
				continue
			}
			if err = fn(objectKey, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (T *Store) Select(ctx context.Context, owner string) ([]directory.Record, error) {
	var records []directory.Record
	err := T.list(ctx, owner, func(objectKey, key string) error {
		out, err := T.api.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(T.Bucket),
			Key:    aws.String(objectKey),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()

		record := directory.Record{
			Owner: owner,
			Key:   key,
		}
		if err = json.NewDecoder(out.Body).Decode(&record.Attributes); err != nil {
			return fmt.Errorf("%w: %s: %v", directory.ErrMalformedRecord, key, err)
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (T *Store) SelectKeys(ctx context.Context, owner string) ([]string, error) {
	var keys []string
	err := T.list(ctx, owner, func(_, key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// BatchPut writes one object per record. Object stores have no multi object
// transaction, so a failure leaves the earlier records written.
func (T *Store) BatchPut(ctx context.Context, owner string, records []directory.Record) error {
	for _, record := range records {
		body, err := json.Marshal(record.Attributes)
		if err != nil {
			return err
		}
		_, err = T.api.PutObject(ctx, &awss3.PutObjectInput{
			Bucket:      aws.String(T.Bucket),
			Key:         aws.String(T.objectKey(owner, record.Key)),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", record.Key, err)
		}
	}
	return nil
}

func (T *Store) Delete(ctx context.Context, owner string, key string) error {
	_, err := T.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(T.Bucket),
		Key:    aws.String(T.objectKey(owner, key)),
	})
	return err
}

var _ directory.Store = (*Store)(nil)
var _ caddy.Module = (*Store)(nil)
var _ caddy.Provisioner = (*Store)(nil)
