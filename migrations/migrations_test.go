package migrations

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEveryServiceShipsTheOutboxTable(t *testing.T) {
	t.Parallel()

	for _, svc := range Services {
		data, err := fs.ReadFile(files, svc+"/00001_outbox.sql")
		require.NoError(t, err, svc)
		require.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS outbox_event", svc)
	}
}

func TestUp_UnknownService(t *testing.T) {
	t.Parallel()

	_, err := Up(context.Background(), nil, "billing")
	require.Error(t, err)
}
