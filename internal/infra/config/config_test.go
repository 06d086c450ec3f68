package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, PaymentsSandbox, cfg.PaymentsProvider)
	assert.Equal(t, 3, cfg.RefundMaxAttempts)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, time.Second}, cfg.RefundRetryBackoff)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.RefundServiceFee)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/rentspace")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REFUND_MAX_ATTEMPTS", "5")
	t.Setenv("REFUND_RETRY_BACKOFF", "10ms")
	t.Setenv("REFUND_SERVICE_FEE", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.RefundMaxAttempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, cfg.RefundRetryBackoff)
	assert.True(t, cfg.RefundServiceFee)
}

func TestLoadRejectsIncompleteSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "mongo without uri", env: map[string]string{"STORAGE_DRIVER": "mongo"}},
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{name: "stripe without key", env: map[string]string{"PAYMENTS_PROVIDER": "stripe"}},
		{name: "unknown provider", env: map[string]string{"PAYMENTS_PROVIDER": "paypal"}},
		{name: "zero attempts", env: map[string]string{"REFUND_MAX_ATTEMPTS": "0"}},
		{name: "bad duration", env: map[string]string{"REFUND_RETRY_BACKOFF": "soon"}},
		{name: "bad bool", env: map[string]string{"S3_USE_SSL": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
