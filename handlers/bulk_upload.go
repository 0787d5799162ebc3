// handlers/bulk_upload.go
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"vinotracker/models"
	"vinotracker/store"
)

const maxUploadBytes = 10 << 20 // 10 MB

type BulkUploadHandler struct {
	store *store.Store
	log   *slog.Logger
}

func NewBulkUploadHandler(s *store.Store, log *slog.Logger) *BulkUploadHandler {
	return &BulkUploadHandler{store: s, log: log}
}

type bulkUploadResult struct {
	Success int      `json:"success"`
	Errors  []string `json:"errors"`
	Total   int      `json:"total"`
}

// Upload imports products or clients from an Excel workbook. Row failures are
// collected and reported; good rows still land.
//
// Product sheets: Name | Description | Price.
// Client sheets:  Name | Email | Phone | Address | Consumption Type | Call Frequency | Rep Email.
func (h *BulkUploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(w, "upload too large or malformed")
		return
	}
	kind := r.FormValue("type")
	if kind != "products" && kind != "clients" {
		badRequest(w, "type must be products or clients")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file field")
		return
	}
	defer file.Close()

	xl, err := excelize.OpenReader(file)
	if err != nil {
		unprocessable(w, "file is not a valid Excel workbook")
		return
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		unprocessable(w, "workbook has no sheets")
		return
	}
	rows, err := xl.GetRows(sheets[0])
	if err != nil {
		unprocessable(w, "could not read first sheet")
		return
	}
	if len(rows) < 2 {
		unprocessable(w, "sheet has no data rows")
		return
	}

	var result bulkUploadResult
	switch kind {
	case "products":
		result = h.importProducts(r.Context(), rows)
	case "clients":
		result = h.importClients(r.Context(), rows)
	}
	h.log.Info("bulk upload finished", "type", kind,
		"success", result.Success, "failed", len(result.Errors))
	respondJSON(w, http.StatusOK, result)
}

func (h *BulkUploadHandler) importProducts(ctx context.Context, rows [][]string) bulkUploadResult {
	result := bulkUploadResult{Errors: []string{}}
	for i, row := range rows[1:] {
		rowNum := i + 2
		result.Total++
		p, err := parseProductRow(row)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		if err := h.store.CreateProduct(ctx, p); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, publicMessage(err, 0)))
			continue
		}
		result.Success++
	}
	return result
}

func (h *BulkUploadHandler) importClients(ctx context.Context, rows [][]string) bulkUploadResult {
	result := bulkUploadResult{Errors: []string{}}

	// Rep assignment comes by email; resolve once up front.
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		return bulkUploadResult{Errors: []string{"could not load users: " + publicMessage(err, 0)}}
	}
	repByEmail := make(map[string]uuid.UUID, len(users))
	for _, u := range users {
		repByEmail[strings.ToLower(u.Email)] = u.ID
	}

	for i, row := range rows[1:] {
		rowNum := i + 2
		result.Total++
		c, err := parseClientRow(row, repByEmail)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		if err := h.store.CreateClient(ctx, c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, publicMessage(err, 0)))
			continue
		}
		result.Success++
	}
	return result
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseProductRow(row []string) (*models.Product, error) {
	p := &models.Product{
		Name:        cell(row, 0),
		Description: cell(row, 1),
	}
	rawPrice := cell(row, 2)
	if rawPrice == "" {
		return nil, fmt.Errorf("price is required")
	}
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", rawPrice)
	}
	p.Price = price
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseClientRow(row []string, repByEmail map[string]uuid.UUID) (*models.Client, error) {
	c := &models.Client{
		Name:            cell(row, 0),
		Email:           cell(row, 1),
		ConsumptionType: models.NormalizeConsumptionType(cell(row, 4)),
		CallFrequency:   1,
	}
	if phone := cell(row, 2); phone != "" {
		c.Phone = &phone
	}
	if addr := cell(row, 3); addr != "" {
		c.Address = &addr
	}
	if raw := cell(row, 5); raw != "" {
		freq, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid call frequency %q", raw)
		}
		c.CallFrequency = freq
	}
	repEmail := strings.ToLower(cell(row, 6))
	if repEmail == "" {
		return nil, fmt.Errorf("rep email is required")
	}
	repID, ok := repByEmail[repEmail]
	if !ok {
		return nil, fmt.Errorf("no user with email %q", repEmail)
	}
	c.AssignedRepID = repID
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
