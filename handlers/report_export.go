// handlers/report_export.go
package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"vinotracker/models"
	"vinotracker/store"
)

// ExportVisits downloads the visit log, optionally limited with ?since=RFC3339.
// format=csv switches from the default Excel workbook.
func (h *ReportHandler) ExportVisits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "since must be RFC3339")
			return
		}
		since = &t
	}
	visits, err := h.store.ListVisits(ctx, since)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	clients, err := h.store.ListClients(ctx, nil)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	headers, rows := visitRows(visits, clientNames(clients), userNames(users), h.now().UTC())
	h.writeExport(w, r, "visits", headers, rows)
}

// ExportOrders downloads the order book, one row per order line.
func (h *ReportHandler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.store.ListOrders(ctx, store.OrderFilter{})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	clients, err := h.store.ListClients(ctx, nil)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	headers, rows := orderRows(orders, clientNames(clients), userNames(users))
	h.writeExport(w, r, "orders", headers, rows)
}

func clientNames(clients []models.Client) map[uuid.UUID]string {
	m := make(map[uuid.UUID]string, len(clients))
	for _, c := range clients {
		m[c.ID] = c.Name
	}
	return m
}

func userNames(users []models.UserProfile) map[uuid.UUID]string {
	m := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		m[u.ID] = u.FullName
	}
	return m
}

func visitRows(visits []models.Visit, clients, reps map[uuid.UUID]string, now time.Time) ([]string, [][]interface{}) {
	headers := []string{"Visit ID", "Client", "Representative", "Start", "End", "Duration (min)", "Notes"}
	rows := make([][]interface{}, 0, len(visits))
	for _, v := range visits {
		end := ""
		if v.EndTime != nil {
			end = v.EndTime.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []interface{}{
			v.ID.String(),
			clients[v.ClientID],
			reps[v.RepID],
			v.StartTime.Format("2006-01-02 15:04:05"),
			end,
			v.DurationMinutes(now),
			v.Notes,
		})
	}
	return headers, rows
}

func orderRows(orders []models.Order, clients, reps map[uuid.UUID]string) ([]string, [][]interface{}) {
	headers := []string{"Order ID", "Client", "Representative", "Date", "Product", "Unit Price", "Qty", "Line Total", "Free Stock", "Order Total"}
	var rows [][]interface{}
	for _, o := range orders {
		items, err := o.OrderItems()
		if err != nil {
			continue
		}
		for _, it := range items {
			rows = append(rows, []interface{}{
				o.ID.String(),
				clients[o.ClientID],
				reps[o.RepID],
				o.CreatedAt.Format("2006-01-02 15:04:05"),
				it.ProductName,
				it.Price,
				it.Quantity,
				it.Total,
				it.IsFreeStock,
				o.TotalAmount,
			})
		}
	}
	return headers, rows
}

// writeExport renders the rows as an Excel workbook or, with ?format=csv, a
// CSV file, and streams it with download headers.
func (h *ReportHandler) writeExport(w http.ResponseWriter, r *http.Request, name string, headers []string, rows [][]interface{}) {
	stamp := h.now().Format("20060102_150405")
	if r.URL.Query().Get("format") == "csv" {
		data, err := buildCSV(headers, rows)
		if err != nil {
			respondError(w, h.log, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.csv", name, stamp))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	f, err := buildWorkbook(headers, rows)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	buffer, err := f.WriteToBuffer()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.xlsx", name, stamp))
	w.Header().Set("Content-Length", strconv.Itoa(buffer.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

func buildWorkbook(headers []string, rows [][]interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Report"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#800080"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	for i, head := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, head)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 20)
	}
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}
	return f, nil
}

func buildCSV(headers []string, rows [][]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprintf("%v", v)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}
