package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"gfx.cafe/gfx/dbchain/lib/directory"
)

// fakeAPI is an in memory bucket. It pages listings one object at a time to
// exercise the paginator.
type fakeAPI struct {
	objects map[string][]byte
	mu      sync.Mutex
}

func (T *fakeAPI) ListObjectsV2(_ context.Context, params *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	T.mu.Lock()
	defer T.mu.Unlock()

	var keys []string
	for k := range T.objects {
		if strings.HasPrefix(k, aws.ToString(params.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if params.ContinuationToken != nil {
		for i, k := range keys {
			if k == *params.ContinuationToken {
				start = i
			}
		}
	}
	out := new(awss3.ListObjectsV2Output)
	if start < len(keys) {
		out.Contents = []types.Object{{Key: aws.String(keys[start])}}
	}
	if start+1 < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[start+1])
	}
	return out, nil
}

func (T *fakeAPI) GetObject(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	T.mu.Lock()
	defer T.mu.Unlock()
	return &awss3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(T.objects[aws.ToString(params.Key)])),
	}, nil
}

func (T *fakeAPI) PutObject(_ context.Context, params *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	T.mu.Lock()
	defer T.mu.Unlock()
	if T.objects == nil {
		T.objects = make(map[string][]byte)
	}
	T.objects[aws.ToString(params.Key)] = body
	return new(awss3.PutObjectOutput), nil
}

func (T *fakeAPI) DeleteObject(_ context.Context, params *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	T.mu.Lock()
	defer T.mu.Unlock()
	delete(T.objects, aws.ToString(params.Key))
	return new(awss3.DeleteObjectOutput), nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	api := new(fakeAPI)
	store := New(Config{Bucket: "b", Prefix: "chains"}, api)

	records := []directory.Record{
		{Owner: "app", Key: "app_A", Attributes: map[string]string{"type": "master"}},
		{Owner: "app", Key: "app_B", Attributes: map[string]string{"type": "follower"}},
		{Owner: "app", Key: "app_C", Attributes: map[string]string{"type": "follower"}},
	}
	if err := store.BatchPut(ctx, "app", records); err != nil {
		t.Fatal(err)
	}
	if err := store.BatchPut(ctx, "app2", []directory.Record{{Owner: "app2", Key: "app2_X"}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.objects["chains/app/app_A.json"]; !ok {
		t.Errorf("unexpected object layout: %v", api.objects)
	}

	selected, err := store.Select(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(selected) != 3 || selected[2].Key != "app_C" || selected[2].Attributes["type"] != "follower" {
		t.Errorf("unexpected records: %+v", selected)
	}

	if err = store.Delete(ctx, "app", "app_B"); err != nil {
		t.Fatal(err)
	}
	keys, err := store.SelectKeys(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "app_A" || keys[1] != "app_C" {
		t.Errorf("keys = %v", keys)
	}
}
