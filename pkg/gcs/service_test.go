package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectURI(t *testing.T) {
	bucket, path, err := ParseObjectURI("gs://transcripts/tenant_1/2026/10/call_1.json")
	require.NoError(t, err)
	assert.Equal(t, "transcripts", bucket)
	assert.Equal(t, "tenant_1/2026/10/call_1.json", path)

	for _, bad := range []string{"https://x/y", "gs://bucket", "gs://bucket/", "gs:///path"} {
		_, _, err := ParseObjectURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestObjectURIRoundTrip(t *testing.T) {
	uri := ObjectURI("transcripts", "a/b.json")
	bucket, path, err := ParseObjectURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "transcripts", bucket)
	assert.Equal(t, "a/b.json", path)
}
