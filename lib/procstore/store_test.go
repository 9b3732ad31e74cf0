package procstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"seiassist/lib/scrapers/sei"
	"seiassist/lib/scrapers/sei/tree"
	"seiassist/lib/sqliteutil"
	"seiassist/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:procstore")
	defer cleanup()

	database, err := sqliteutil.OpenDB(Schema, ":memory:")
	require.NoError(t, err)
	store := NewStore(database)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, err = store.Get(ctx, "unknown")
	require.ErrorIs(t, err, ErrNotFound)

	proc := &sei.Process{
		Number:       "1500.01.0310980/2025-88",
		ProcedureId:  "1001",
		Url:          "https://portal.example/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=1001",
		Hash:         "h1001",
		Category:     sei.CategoryReceived,
		Title:        "Pagamento de diárias",
		Confidential: true,
		AccessLevel:  "Processo sigiloso",
		Signers:      []string{"Maria Silva"},
		Documents: []tree.Document{
			{Id: "12345", Title: "Ofício 1", Type: "DOCUMENTO_GERADO"},
		},
	}
	require.NoError(t, store.Put(ctx, proc))

	got, err := store.Get(ctx, "1001")
	require.NoError(t, err)
	require.Equal(t, proc.Number, got.Number)
	require.Equal(t, proc.Hash, got.Hash)
	require.True(t, got.Confidential)
	require.Equal(t, []string{"Maria Silva"}, got.Signers)
	require.Len(t, got.Documents, 1)
	require.Equal(t, "12345", got.Documents[0].Id)

	// a later put replaces the snapshot
	proc.Seen = true
	require.NoError(t, store.Put(ctx, proc))
	got, err = store.Get(ctx, "1001")
	require.NoError(t, err)
	require.True(t, got.Seen)

	listed, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestExportXlsx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processos.xlsx")
	processes := []*sei.Process{
		{Number: "1500.01.0000001/2025-01", Category: sei.CategoryReceived},
		{Number: "1500.01.0000002/2025-02", Category: sei.CategoryGenerated, Signers: []string{"A", "B"}},
	}
	require.NoError(t, ExportXlsx(processes, path))
	require.FileExists(t, path)
}
