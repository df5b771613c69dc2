package push

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"booking-notifications/internal/common/config"
	commonerrors "booking-notifications/internal/common/errors"
)

func TestNewWebPushSender_RequiresVAPIDKeys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PushConfig
		wantErr bool
	}{
		{
			name:    "missing both keys",
			cfg:     config.PushConfig{Subscriber: "mailto:ops@example.com"},
			wantErr: true,
		},
		{
			name:    "missing private key",
			cfg:     config.PushConfig{VAPIDPublicKey: "pub"},
			wantErr: true,
		},
		{
			name: "complete credentials",
			cfg: config.PushConfig{
				VAPIDPublicKey:  "pub",
				VAPIDPrivateKey: "priv",
				Subscriber:      "mailto:ops@example.com",
				TTL:             3600,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewWebPushSender(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, commonerrors.IsConfiguration(err))
				assert.Nil(t, sender)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, sender)
			}
		})
	}
}

func TestStatusError_MessageMatchesClassifierSignatures(t *testing.T) {
	assert.Equal(t, "push service returned 429 Too Many Requests", statusError(429).Error())
	assert.Equal(t, "push service returned 503 Service Unavailable", statusError(503).Error())
}
