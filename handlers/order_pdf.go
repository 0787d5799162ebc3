// handlers/order_pdf.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/jung-kurt/gofpdf"

	"vinotracker/models"
)

// PDF renders an order confirmation document for printing or emailing to the
// client.
func (h *OrderHandler) PDF(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	items, err := o.OrderItems()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	client, err := h.store.GetClient(r.Context(), o.ClientID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	rep, err := h.store.GetUser(r.Context(), o.RepID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	var buf bytes.Buffer
	if err := renderOrderPDF(&buf, o, items, client, rep); err != nil {
		respondError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=order_%s.pdf", o.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func renderOrderPDF(buf *bytes.Buffer, o *models.Order, items []models.OrderItem,
	client *models.Client, rep *models.UserProfile) error {

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(128, 0, 128)
	pdf.CellFormat(0, 12, "VINO TRACKER", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 13)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, "Order Confirmation", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Order ID: "+o.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+o.CreatedAt.Format("2 January 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Client", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, client.Name, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, client.Email, "", 1, "L", false, 0, "")
	if client.Address != nil && *client.Address != "" {
		pdf.CellFormat(0, 6, *client.Address, "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Sales Representative", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, rep.FullName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, rep.Email, "", 1, "L", false, 0, "")
	pdf.Ln(6)

	// Item table.
	pdf.SetFillColor(128, 0, 128)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(80, 8, "Product", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, "Total", "1", 1, "R", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		name := it.ProductName
		if it.IsFreeStock {
			name += " (free stock)"
		}
		pdf.CellFormat(80, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("R %.2f", it.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("R %.2f", it.Total), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(130, 8, "Order Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, fmt.Sprintf("R %.2f", o.TotalAmount), "1", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 8, "Thank you for your business!", "", 1, "C", false, 0, "")

	return pdf.Output(buf)
}
