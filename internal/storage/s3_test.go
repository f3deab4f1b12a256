package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	bucket, key, err := ParseLocation("s3://captions/shows/ep-1.vtt")
	require.NoError(t, err)
	assert.Equal(t, "captions", bucket)
	assert.Equal(t, "shows/ep-1.vtt", key)

	bucket, key, err = ParseLocation("s3:///ep-2.vtt")
	require.NoError(t, err)
	assert.Empty(t, bucket)
	assert.Equal(t, "ep-2.vtt", key)

	_, _, err = ParseLocation("https://example.com/ep.vtt")
	assert.Error(t, err)

	_, _, err = ParseLocation("s3://captions")
	assert.Error(t, err)
}

func TestS3Client_Location(t *testing.T) {
	c := &S3Client{bucket: "captions"}
	assert.Equal(t, "s3://captions/shows/ep-1.vtt", c.Location("/shows/ep-1.vtt"))

	bucket, key, err := ParseLocation(c.Location("ep-2.vtt"))
	require.NoError(t, err)
	assert.Equal(t, "captions", bucket)
	assert.Equal(t, "ep-2.vtt", key)
}
