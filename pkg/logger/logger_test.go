package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitRejectsUnknownLevelAndFormat(t *testing.T) {
	_, err := Init("loud", "json")
	require.Error(t, err)

	_, err = Init("info", "xml")
	require.Error(t, err)
}

func TestInitSetsGlobal(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	l, err := Init("debug", "console")
	require.NoError(t, err)
	require.Same(t, l, L())
}

func TestLBeforeInitIsNop(t *testing.T) {
	Set(nil)
	require.NotPanics(t, func() { L().Info("dropped", zap.String("k", "v")) })
}
