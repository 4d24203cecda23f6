package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log/desensitize"
	"github.com/kochabx/authgate/log/writer"
)

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, WithLevel(zerolog.InfoLevel))

	logger.Debug().Msg("hidden")
	logger.Info().Str("user_id", "u1").Msg("login succeeded")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "login succeeded", entry["message"])
}

func TestLoggerMasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	hook := desensitize.NewHook(desensitize.AuthRules()...)
	logger := NewWriter(&buf, WithDesensitize(hook))

	logger.Info().
		Str("password", "hunter22").
		Str("authorization", "Bearer abc.def.ghi").
		Str("code", "123456").
		Msg("request")

	out := buf.String()
	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "123456")
	assert.Contains(t, out, `"password":"******"`)
	assert.Same(t, hook, logger.Hook())
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf)
	logger.Error().Err(errors.ErrCSRF).Msg("rejected")
	assert.Contains(t, buf.String(), "invalid csrf token")
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFile(FileConfig{
		Dir:        dir,
		Filename:   "test",
		RotateMode: writer.RotateModeSize,
		MaxSizeMB:  1,
	})
	require.NoError(t, err)

	logger.Info().Msg("to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestFromConfig(t *testing.T) {
	logger, err := FromConfig(Config{Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	assert.NotNil(t, logger.Hook())

	_, err = FromConfig(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGlobalLogger(t *testing.T) {
	prev := G
	defer SetGlobalLogger(prev)

	var buf bytes.Buffer
	SetGlobalLogger(NewWriter(&buf))
	SetGlobalLevel(zerolog.WarnLevel)

	Info().Msg("dropped")
	Warn().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
