package kafka

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMissingBrokersIsConfigurationError(t *testing.T) {
	_, err := New("[1] kafka", map[string]any{"topic": "events"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestMissingTopicIsConfigurationError(t *testing.T) {
	_, err := New("[1] kafka", map[string]any{"brokers": "localhost:9092"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestUnknownModeIsConfigurationError(t *testing.T) {
	_, err := New("[1] kafka", map[string]any{
		"brokers": "localhost:9092",
		"topic":   "events",
		"mode":    "sideways",
	}, zerolog.Nop())
	assert.Error(t, err)
}
