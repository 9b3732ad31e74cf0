package sei

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"seiassist/lib/scrapers/sei/tree"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// the portal serves latin-1, fixtures go through the same encoding
func writeLatin1(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(body))
	require.NoError(t, err)
	w.Write(encoded)
}

const treeFrameFixture = `<html><body><script>
Nos[0] = new infraArvoreNo('DOCUMENTO_GERADO','12345','P1001','controlador.php?acao=documento_visualizar&id_documento=12345','ifrVisualizacao','Oficio','Ofício 1','svg/doc.svg');
NosAcoes[0] = new infraArvoreAcao('ASSINATURA','acao','12345','alert(\'Assinado por\nMaria Silva\')',null,'Assinaturas','svg/assinatura.svg');
NosAcoes[1] = new infraArvoreAcao('NIVEL_ACESSO','acao','P1001','alert(\'Processo sigiloso\')',null,'Nível de acesso','svg/sigilo.svg');
</script></body></html>`

func TestEnrichProcesses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("acao") {
		case "procedimento_trabalhar":
			if r.URL.Query().Get("id_procedimento") == "9999" {
				http.Error(w, "indisponível", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`<html><body><iframe id="ifrArvore" src="controlador.php?acao=arvore_visualizar&id_procedimento=1001"></iframe></body></html>`))
		case "arvore_visualizar":
			writeLatin1(t, w, treeFrameFixture)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	processes := []*Process{
		{
			Number:      "1500.01.0000001/2025-01",
			ProcedureId: "P1001",
			Url:         server.URL + "/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=1001",
		},
		{
			Number:      "1500.01.0000009/2025-09",
			ProcedureId: "9999",
			Url:         server.URL + "/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=9999",
		},
	}

	client.EnrichProcesses(context.Background(), processes, EnrichmentOptions{})

	first := processes[0]
	require.Len(t, first.Documents, 1)
	require.Equal(t, "12345", first.Documents[0].Id)
	require.Equal(t, "Ofício 1", first.Documents[0].Title)
	require.Contains(t, first.Signers, "Maria Silva")
	require.True(t, first.Confidential)
	require.NotEmpty(t, first.AccessLevel)

	// the failing record is skipped, not fatal
	second := processes[1]
	require.Empty(t, second.Documents)
	require.False(t, second.Confidential)
}

func TestEnrichProcessesClearsStaleTreeState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "indisponível", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	processes := []*Process{{
		Number:          "1500.01.0000001/2025-01",
		ProcedureId:     "P1001",
		Url:             server.URL + "/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=1001",
		Documents:       []tree.Document{{Id: "12345", Title: "Ofício antigo"}},
		Signers:         []string{"Maria Silva"},
		SignatureAlerts: []string{"Assinado por Maria Silva"},
		Confidential:    true,
		AccessLevel:     "sigiloso",
	}}

	client.EnrichProcesses(context.Background(), processes, EnrichmentOptions{})

	// a failed tree fetch clears the previous tree state rather than
	// serving it stale
	proc := processes[0]
	require.Empty(t, proc.Documents)
	require.Empty(t, proc.Signers)
	require.Empty(t, proc.SignatureAlerts)
	require.False(t, proc.Confidential)
	require.Empty(t, proc.AccessLevel)
}

func TestEnrichProcessesLimit(t *testing.T) {
	visits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("acao") == "procedimento_trabalhar" {
			visits++
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	processes := []*Process{
		{ProcedureId: "1", Url: server.URL + "/sei/controlador.php?acao=procedimento_trabalhar"},
		{ProcedureId: "2", Url: server.URL + "/sei/controlador.php?acao=procedimento_trabalhar"},
		{ProcedureId: "3", Url: server.URL + "/sei/controlador.php?acao=procedimento_trabalhar"},
	}
	client.EnrichProcesses(context.Background(), processes, EnrichmentOptions{Limit: 1})
	require.Equal(t, 1, visits)
}
