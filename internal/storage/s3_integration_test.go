//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/testutil"
)

func TestS3Client_Integration_GetObject(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "captions",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	doc := []byte("WEBVTT\n\n00:00.000 --> 00:02.000\nhello\n")
	require.NoError(t, client.PutObject(ctx, "ep-1.vtt", "text/vtt", doc))

	got, err := client.GetObject(ctx, "", "ep-1.vtt")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = client.GetObject(ctx, "captions", "missing.vtt")
	assert.Equal(t, domain.ErrCodeNotFound, domain.CodeOf(err))
}
