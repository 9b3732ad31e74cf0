package sei

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pdfPortal is a minimal portal standing in for the whole generation
// workflow: process page, tree frame, generation form and download.
type pdfPortal struct {
	server *httptest.Server
	// process page fetches fail with a 500 while positive
	failProcessFetches atomic.Int32
	generated          atomic.Int32
}

func newPdfPortal(t *testing.T) *pdfPortal {
	t.Helper()
	portal := &pdfPortal{}
	mux := http.NewServeMux()

	mux.HandleFunc("/sei/controlador.php", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("acao") {
		case "procedimento_trabalhar":
			if portal.failProcessFetches.Add(-1) >= 0 {
				http.Error(w, "indisponível", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`<html><body>
				<iframe id="ifrArvore" src="controlador.php?acao=arvore_visualizar&id_procedimento=1001"></iframe>
			</body></html>`))
		case "arvore_visualizar":
			w.Write([]byte(`<html><body>
				<a href="controlador.php?acao=procedimento_gerar_pdf&id_procedimento=1001&infra_hash=h1">
					<img alt="Gerar Arquivo PDF do Processo" src="svg/pdf.svg"/>
				</a>
			</body></html>`))
		case "procedimento_gerar_pdf":
			if r.Method == http.MethodPost {
				require.NoError(t, r.ParseForm())
				require.Equal(t, "1", r.PostForm.Get("hdnFlagGerar"))
				require.Equal(t, "T", r.PostForm.Get("rdoTipo"))
				portal.generated.Add(1)
				w.Write([]byte(`<html><body>
					<iframe id="ifrDownload" src="controlador.php?acao=exibir_arquivo&id_arquivo=55"></iframe>
				</body></html>`))
				return
			}
			w.Write([]byte(`<html><body>
				<form action="controlador.php?acao=procedimento_gerar_pdf&id_procedimento=1001" method="post">
					<input type="hidden" name="hdnFlagGerar" value="0"/>
					<input type="radio" name="rdoTipo" value="T"/>
					<input type="radio" name="rdoTipo" value="P"/>
				</form>
			</body></html>`))
		case "exibir_arquivo":
			w.Header().Set("content-type", "application/pdf")
			w.Write([]byte("%PDF-1.7 conteudo"))
		default:
			http.NotFound(w, r)
		}
	})

	portal.server = httptest.NewServer(mux)
	t.Cleanup(portal.server.Close)
	return portal
}

func (p *pdfPortal) process() *Process {
	return &Process{
		Number:      "1500.01.0310980/2025-88",
		ProcedureId: "1001",
		Url:         p.server.URL + "/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=1001",
	}
}

func quickRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond * 5}
}

func TestGeneratePDF(t *testing.T) {
	portal := newPdfPortal(t)
	client := newTestClient(t, portal.server)

	result := client.GeneratePDF(context.Background(), portal.process(), t.TempDir(), quickRetry(1))
	require.NoError(t, result.Err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Attempts)

	contents, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "%PDF")
	require.Contains(t, result.Path, "1500_01_0310980_2025-88.pdf")
}

func TestGeneratePDFDefaultsMissingDocumentType(t *testing.T) {
	var submittedType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("acao") {
		case "procedimento_trabalhar":
			w.Write([]byte(`<html><body><iframe id="ifrArvore" src="controlador.php?acao=arvore_visualizar"></iframe></body></html>`))
		case "arvore_visualizar":
			w.Write([]byte(`<html><body><a href="controlador.php?acao=procedimento_gerar_pdf">pdf</a></body></html>`))
		case "procedimento_gerar_pdf":
			if r.Method == http.MethodPost {
				require.NoError(t, r.ParseForm())
				submittedType = r.PostForm.Get("rdoTipo")
				w.Write([]byte(`<html><body><iframe id="ifrDownload" src="controlador.php?acao=exibir_arquivo"></iframe></body></html>`))
				return
			}
			// older portal revisions render no rdoTipo input at all
			w.Write([]byte(`<html><body><form action="controlador.php?acao=procedimento_gerar_pdf"><input type="hidden" name="hdnFlagGerar" value="0"/></form></body></html>`))
		case "exibir_arquivo":
			w.Header().Set("content-type", "application/pdf")
			w.Write([]byte("%PDF-1.7 conteudo"))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	proc := &Process{Number: "1500.01.0000000/2025-00", Url: server.URL + "/sei/controlador.php?acao=procedimento_trabalhar"}
	result := client.GeneratePDF(context.Background(), proc, t.TempDir(), quickRetry(1))
	require.True(t, result.Success)
	require.Equal(t, "T", submittedType)
}

func TestGeneratePDFRetries(t *testing.T) {
	portal := newPdfPortal(t)
	portal.failProcessFetches.Store(2)
	client := newTestClient(t, portal.server)

	result := client.GeneratePDF(context.Background(), portal.process(), t.TempDir(), quickRetry(3))
	require.True(t, result.Success)
	require.Equal(t, 3, result.Attempts)
	require.Equal(t, int32(1), portal.generated.Load())
}

func TestGeneratePDFExhaustsRetries(t *testing.T) {
	portal := newPdfPortal(t)
	portal.failProcessFetches.Store(100)
	client := newTestClient(t, portal.server)

	result := client.GeneratePDF(context.Background(), portal.process(), t.TempDir(), quickRetry(2))
	require.False(t, result.Success)
	require.Equal(t, 2, result.Attempts)
	require.ErrorIs(t, result.Err, ErrPDF)
	require.Equal(t, int32(0), portal.generated.Load())
}

func TestGeneratePDFRejectsNonPdf(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("acao") {
		case "procedimento_trabalhar":
			w.Write([]byte(`<html><body><iframe id="ifrArvore" src="controlador.php?acao=arvore_visualizar"></iframe></body></html>`))
		case "arvore_visualizar":
			w.Write([]byte(`<html><body><a href="controlador.php?acao=procedimento_gerar_pdf">pdf</a></body></html>`))
		case "procedimento_gerar_pdf":
			if r.Method == http.MethodPost {
				w.Write([]byte(`<html><body><a href="controlador.php?acao=exibir_arquivo">arquivo</a></body></html>`))
				return
			}
			w.Write([]byte(`<html><body><form action="controlador.php?acao=procedimento_gerar_pdf"><input type="hidden" name="hdnFlagGerar" value="0"/></form></body></html>`))
		case "exibir_arquivo":
			w.Header().Set("content-type", "text/html")
			w.Write([]byte("<html>erro na geração</html>"))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	proc := &Process{Number: "1500.01.0000000/2025-00", Url: server.URL + "/sei/controlador.php?acao=procedimento_trabalhar"}
	result := client.GeneratePDF(context.Background(), proc, t.TempDir(), quickRetry(1))
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, ErrPDF)
	require.ErrorContains(t, result.Err, "not a pdf")
}
