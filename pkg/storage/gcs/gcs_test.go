package gcs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/odvcencio/braid/pkg/storage/storagetest"
)

const (
	credsVar = "BRAID_GCS_TESTING_CREDS"
	projVar  = "BRAID_GCS_TESTING_PROJECT"
)

func TestStore(t *testing.T) {
	var (
		creds     = os.Getenv(credsVar)
		projectID = os.Getenv(projVar)
	)
	if creds == "" || projectID == "" {
		t.Skipf("to run TestStore, set %s to the name of a credentials file and %s to a project ID", credsVar, projVar)
	}

	var r [20]byte
	if _, err := rand.Read(r[:]); err != nil {
		t.Fatal(err)
	}
	bucketName := "braid-test-" + hex.EncodeToString(r[:])

	ctx := context.Background()
	client, err := gcstorage.NewClient(ctx, option.WithCredentialsFile(creds))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	t.Logf("creating bucket %s in project %s", bucketName, projectID)

	bucket := client.Bucket(bucketName)
	if err := bucket.Create(ctx, projectID, nil); err != nil {
		t.Fatal(err)
	}
	s := New(bucket, "repo/")
	defer func() {
		s.DeleteDirectory(ctx, "")
		bucket.Delete(ctx)
	}()

	storagetest.Run(ctx, t, s)
}
