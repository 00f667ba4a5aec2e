// Package export builds Excel workbooks from warehouse data.
package export

import (
	"bytes"
	"fmt"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/xuri/excelize/v2"
)

// DispatchLogs renders the audit trail to an xlsx workbook, one row per
// verified line so discrepancies are visible without opening the snapshot.
func DispatchLogs(logs []entity.DispatchLog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Despachos"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Documento", "Tipo", "Verificado por", "Fecha", "Placa", "Conductor", "Código", "Descripción", "Requerido", "Verificado", "Manual"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDDDDD"}, Pattern: 1},
	})
	if err == nil {
		f.SetRowStyle(sheet, 1, 1, headerStyle)
	}

	row := 2
	for _, log := range logs {
		for _, item := range log.Items {
			values := []interface{}{
				log.DocumentID,
				log.DocumentType,
				log.VerifiedByUserName,
				log.VerifiedAt.Format("2006-01-02 15:04"),
				log.VehiclePlate,
				log.DriverName,
				item.ItemCode,
				item.Description,
				item.RequiredQuantity,
				item.VerifiedQuantity,
				item.IsManualOverride,
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
