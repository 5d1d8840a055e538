package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	require.False(t, cfg.UsesPostgres())
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"activity_events", "goal_events"}, cfg.ConsumerTopics)
	require.Equal(t, int64(10<<20), cfg.EvidenceMaxBytes)
	require.Equal(t, "clamp", cfg.DurationPolicy)
	require.Equal(t, 50, cfg.InsightHistory)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://u:p@db:5432/smartroutine")
	t.Setenv("KAFKA_BROKERS", " k1:9092 , ,k2:9092 ")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("BLOB_USE_SSL", "true")
	t.Setenv("DURATION_POLICY", "floor")

	cfg := Load()

	require.True(t, cfg.UsesPostgres())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 90*time.Minute, cfg.JWTTTL)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.True(t, cfg.Blob.UseSSL)
	require.Equal(t, "floor", cfg.DurationPolicy)
}
