package registry

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/stage"
)

func TestRegisterAndNew(t *testing.T) {
	Register("test-echo", func(name string, opts Options, logger zerolog.Logger) (stage.Stage, error) {
		return nil, nil
	})

	_, err := New("test-echo", "[0] test-echo", Options{"k": "v"}, zerolog.Nop())
	require.NoError(t, err)

	assert.Contains(t, Names(), "test-echo")
}

func TestNewUnknownStage(t *testing.T) {
	_, err := New("does-not-exist", "x", Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestOptionsAccessors(t *testing.T) {
	opts := Options{"port": 5140, "name": "syslog", "strict": true}
	assert.Equal(t, 5140, opts.Int("port", 0))
	assert.Equal(t, "syslog", opts.String("name", ""))
	assert.True(t, opts.Bool("strict", false))
	assert.Equal(t, "fallback", opts.String("missing", "fallback"))
	assert.Equal(t, 99, opts.Int("missing", 99))
}
