package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapability_Has(t *testing.T) {
	c := CapRefreshToken | CapTestConnection

	assert.True(t, c.Has(CapRefreshToken))
	assert.True(t, c.Has(CapRefreshToken|CapTestConnection))
	assert.False(t, c.Has(CapRestoreFile))
	assert.False(t, c.Has(CapRefreshToken|CapWebhooks))
}

func TestCapability_String(t *testing.T) {
	tests := []struct {
		cap  Capability
		want string
	}{
		{CapNone, "none"},
		{CapRefreshToken, "refresh"},
		{CapTestConnection | CapWebhooks, "test,webhooks"},
		{CapRefreshToken | CapTestConnection | CapRestoreFile | CapWebhooks, "refresh,test,restore,webhooks"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cap.String())
		})
	}
}
