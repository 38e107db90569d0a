package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{level: "info", format: "json"},
		{level: "debug", format: "console"},
		{level: "loud", format: "json", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.level+"/"+tc.format, func(t *testing.T) {
			log, err := NewLogger(tc.level, tc.format)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNewFileLogger(t *testing.T) {
	// Arrange
	dir := filepath.Join(t.TempDir(), "log")

	// Act
	log, err := NewFileLogger(dir, "bitFlyer", "BTC_JPY")
	require.NoError(t, err)
	log.Info("BUY", zap.Float64("price", 50))
	log.Warn("LOSS CUT")
	_ = log.Sync()

	// Assert
	data, err := os.ReadFile(filepath.Join(dir, "bitflyer_BTC_JPY.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "BUY", first["msg"])
	assert.Equal(t, "BTC_JPY", first["symbol"])
	assert.Equal(t, "bitFlyer", first["exchange"])
	assert.Equal(t, 50.0, first["price"])
}
