// Package invoice renders order invoices as PDF documents.
package invoice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/auth"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/orders"
)

//go:embed templates/invoice.html
var templates embed.FS

// Payload aggregates order data for invoice rendering.
type Payload struct {
	Number      string
	Date        time.Time
	From        string
	To          string
	Address     string
	Items       []Line
	TotalAmount decimal.Decimal
}

// Line is one billed row on the invoice.
type Line struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	IsPaid    bool
}

// BuildPayload assembles an invoice payload from the order and both parties.
// productNames maps product id to display name.
func BuildPayload(order *orders.Order, pharma, store *auth.User, productNames map[int64]string) Payload {
	payload := Payload{
		Number:      order.OrderNumber,
		Date:        order.CreatedAt,
		From:        pharma.CompanyName,
		To:          store.CompanyName,
		Address:     formatAddress(store.Address),
		TotalAmount: order.TotalAmount,
	}
	for _, item := range order.Items {
		name := productNames[item.ProductID]
		if name == "" {
			name = fmt.Sprintf("Product #%d", item.ProductID)
		}
		payload.Items = append(payload.Items, Line{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			IsPaid:    item.IsPaid,
		})
	}
	return payload
}

func formatAddress(a auth.Address) string {
	parts := []string{a.Street, a.City}
	filtered := parts[:0]
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	out := strings.Join(filtered, ", ")
	if a.State != "" {
		out += ", " + a.State
	}
	if a.Pincode != "" {
		out += " - " + a.Pincode
	}
	return strings.TrimPrefix(out, ", ")
}

// Renderer turns payloads into HTML ready for PDF conversion.
type Renderer struct {
	tpl *template.Template
}

// NewRenderer parses the embedded invoice template.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("02/01/2006")
		},
	}
	tpl, err := template.New("invoice.html").Funcs(funcMap).ParseFS(templates, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// BuildHTML renders the payload into the invoice document.
func (r *Renderer) BuildHTML(payload Payload) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.tpl.ExecuteTemplate(buf, "invoice.html", payload); err != nil {
		return "", err
	}
	return buf.String(), nil
}
