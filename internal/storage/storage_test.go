package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteKeyTiers(t *testing.T) {
	assert.Equal(t, "/v1/vol/7/2608/abc.mct", RemoteKey("/v1/vol/", "720p", "2608/abc.mct"))
	assert.Equal(t, "/v1/vol/10/2608/abc.mct", RemoteKey("/v1/vol/", "1080p", "2608/abc.mct"))
}

func TestRemoteKeyNormalizesSeparators(t *testing.T) {
	assert.Equal(t, "/v1/vol/7/2608/abc.mct", RemoteKey("/v1/vol/", "720p", "2608/abc.mct"))
}
