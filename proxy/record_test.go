package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"1.2.3.4:8080", true},
		{"255.255.255.255:65535", true},
		{"1.2.3.4:1", true},
		{"1.2.3.4", false},
		{"1.2.3.4:", false},
		{"1.2.3.4:0", false},
		{"1.2.3.4:65536", false},
		{"1.2.3.4:port", false},
		{"999.2.3.4:8080", false},
		{"not-an-ip:8080", false},
		{":8080", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEndpoint(tt.endpoint), "endpoint %q", tt.endpoint)
	}
}

func TestRecordHostPort(t *testing.T) {
	rec := &Record{Endpoint: "1.2.3.4:8080"}
	assert.Equal(t, "1.2.3.4", rec.IP())
	assert.Equal(t, "8080", rec.Port())

	malformed := &Record{Endpoint: "1.2.3.4"}
	assert.Equal(t, "1.2.3.4", malformed.IP(), "malformed endpoints fall back to the raw string")
	assert.Equal(t, "", malformed.Port())
}
