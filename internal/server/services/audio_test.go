package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/voicegate/internal/server/config"
)

// stubAudioSeams replaces the S3 calls with in-memory recording stubs.
func stubAudioSeams(t *testing.T) (puts, deletes *[]string) {
	t.Helper()

	origPut, origDelete := putObject, deleteObject
	t.Cleanup(func() {
		putObject, deleteObject = origPut, origDelete
	})

	var putKeys, deleteKeys []string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		putKeys = append(putKeys, *in.Key)
		return &s3.PutObjectOutput{}, nil
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		deleteKeys = append(deleteKeys, *in.Key)
		return &s3.DeleteObjectOutput{}, nil
	}
	return &putKeys, &deleteKeys
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StorageSecret = "test-storage-secret"
	return cfg
}

func TestAudioStore_PutAndDelete(t *testing.T) {
	puts, deletes := stubAudioSeams(t)

	store := NewAudioStore(testConfig())

	if err := store.Put(context.Background(), "attempts/k1", []byte("audio")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := store.Delete(context.Background(), "attempts/k1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if len(*puts) != 1 || (*puts)[0] != "attempts/k1" {
		t.Errorf("unexpected puts: %v", *puts)
	}
	if len(*deletes) != 1 || (*deletes)[0] != "attempts/k1" {
		t.Errorf("unexpected deletes: %v", *deletes)
	}
}

func TestAudioStore_PutError(t *testing.T) {
	stubAudioSeams(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("bucket gone")
	}

	store := NewAudioStore(testConfig())
	err := store.Put(context.Background(), "k", []byte("a"))
	if err == nil || !strings.Contains(err.Error(), "bucket gone") {
		t.Errorf("expected wrapped put error, got %v", err)
	}
}

func TestGetRandomAudioKey_Unique(t *testing.T) {
	k1 := GetRandomAudioKey("u1")
	k2 := GetRandomAudioKey("u1")
	if k1 == k2 {
		t.Error("keys must be unique")
	}
	if !strings.HasPrefix(k1, "attempts/") || !strings.Contains(k1, "/u1/") {
		t.Errorf("unexpected key shape: %s", k1)
	}
}
