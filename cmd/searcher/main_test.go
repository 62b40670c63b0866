package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
)

func TestValidateIngest(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, validateIngest(cfg))

	cfg.Ingest.Mode = "kafka"
	err := validateIngest(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consumeKafka")

	cfg.Ingest.ConsumeKafka = true
	assert.NoError(t, validateIngest(cfg))

	cfg.Ingest.Mode = "direct"
	assert.NoError(t, validateIngest(cfg))
}

func TestInstanceID(t *testing.T) {
	assert.Equal(t, "search-1", instanceID(config.KafkaConfig{InstanceID: "search-1"}))

	a := instanceID(config.KafkaConfig{})
	b := instanceID(config.KafkaConfig{})
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestReplicasGetDistinctGroups(t *testing.T) {
	cfg := config.Default()
	g1 := kafka.ReplicaGroupID(cfg.Kafka.ConsumerGroup, instanceID(cfg.Kafka))
	g2 := kafka.ReplicaGroupID(cfg.Kafka.ConsumerGroup, instanceID(cfg.Kafka))
	assert.NotEqual(t, g1, g2)
	assert.Contains(t, g1, cfg.Kafka.ConsumerGroup+"-")
}
