package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	tests := map[string]Env{
		"":           EnvDev,
		"dev":        EnvDev,
		"PROD":       EnvProd,
		"production": EnvProd,
		" staging ":  EnvStage,
		"nonsense":   EnvDev,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseEnv(in), "ParseEnv(%q)", in)
	}
}

func TestInit_StdBackendWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := initTo(&buf, Config{Env: EnvDev, Service: "svc", InstanceID: "i-1"})

	log.Info("room created", "room", "QWER")
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "room created")
	assert.Contains(t, out, "room=QWER")
	assert.Contains(t, out, "service=svc")
	assert.Contains(t, out, "instance_id=i-1")
	assert.NotContains(t, out, "hidden")
}

func TestInit_DebugLowersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := initTo(&buf, Config{Env: EnvDev, Debug: true})

	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestInit_ZapBackendWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := initTo(&buf, Config{Env: EnvProd, Service: "svc", Version: "1.2.3"})

	log.Warn("ping failed", "member", "m-1")

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "ping failed", rec["msg"])
	assert.Equal(t, "m-1", rec["member"])
	assert.Equal(t, "svc", rec["service"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestInit_SetsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := initTo(&buf, Config{Env: EnvDev})

	slog.Info("through default")
	assert.Contains(t, buf.String(), "through default")
	assert.Same(t, log, slog.Default())
}
