package procstore

import (
	"fmt"
	"strings"

	"seiassist/lib/scrapers/sei"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Processos"

var exportColumns = []string{
	"Número",
	"Categoria",
	"Tipo",
	"Título",
	"Atribuído para",
	"Visualizado",
	"Documentos novos",
	"Sigiloso",
	"Nível de acesso",
	"Assinantes",
	"Marcadores",
	"Documentos",
	"Endereço",
}

func exportRow(proc *sei.Process) []any {
	boolCell := func(v bool) string {
		if v {
			return "Sim"
		}
		return "Não"
	}
	return []any{
		proc.Number,
		string(proc.Category),
		proc.TypeDetail,
		proc.Title,
		proc.AssigneeName,
		boolCell(proc.Seen),
		boolCell(proc.HasNewDocuments),
		boolCell(proc.Confidential),
		proc.AccessLevel,
		strings.Join(proc.Signers, "; "),
		strings.Join(proc.Markers, "; "),
		len(proc.Documents),
		proc.Url,
	}
}

// ExportXlsx writes the processes to a spreadsheet at the given path,
// one row per process in the order given.
func ExportXlsx(processes []*sei.Process, path string) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for col, header := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(exportSheet, cell, header); err != nil {
			return err
		}
	}

	for i, proc := range processes {
		for col, value := range exportRow(proc) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(exportSheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := file.SetColWidth(exportSheet, "A", "A", 28); err != nil {
		return err
	}
	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("saving spreadsheet: %w", err)
	}
	return nil
}
