// Package export renders finalized bill snapshots. Every renderer here is a
// pure formatting step over bill.Snapshot: quantities, prices and line order
// come from the snapshot and are never altered.
package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/hmaji/billfold/internal/bill"
)

// printDocument is a self-contained HTML document suitable for the browser
// print dialog, mirroring the on-screen preview layout.
const printDocument = `<!DOCTYPE html>
<html>
<head>
<title>Bill Print</title>
<style>
  body { font-family: Arial, sans-serif; margin: 20px; }
  .print-container { max-width: 800px; margin: auto; }
  .header { text-align: center; margin-bottom: 20px; }
  .header h1 { margin: 0; font-size: 1.5rem; }
  .header p { margin: 5px 0; color: #555; font-size: 0.9rem; }
  .item-table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
  .item-table th, .item-table td { border: 1px solid #ddd; padding: 8px; text-align: left; font-size: 0.9rem; }
  .item-table th { background-color: #f2f2f2; }
  .text-right { text-align: right; }
  .text-center { text-align: center; }
  .total-section { text-align: right; margin-top: 15px; font-size: 1rem; font-weight: bold; }
  .footer { text-align: center; margin-top: 30px; font-size: 0.8rem; color: #777; }
</style>
</head>
<body>
<div class="print-container">
  <div class="header">
    <h1>Invoice / Bill</h1>
    <p>Client: {{.ClientName}}</p>
    <p>Date Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
  </div>
  <table class="item-table">
    <thead>
      <tr>
        <th>Product</th>
        <th class="text-center">Qty</th>
        <th class="text-right">Unit Price</th>
        <th class="text-right">Total</th>
      </tr>
    </thead>
    <tbody>
      {{range .Lines}}
      <tr>
        <td>{{.Name}}</td>
        <td class="text-center">{{.Quantity}}</td>
        <td class="text-right">{{money .UnitPrice}}</td>
        <td class="text-right">{{money .Total}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
  <div class="total-section">Total Amount: {{money .TotalAmount}}</div>
  <div class="footer">Thank you!</div>
</div>
</body>
</html>
`

var printTpl = template.Must(template.New("bill_print").Funcs(template.FuncMap{
	"money": Money,
}).Parse(printDocument))

// Money formats an amount the way the bill preview shows it.
func Money(v float64) string { return fmt.Sprintf("$%.2f", v) }

// Print renders the snapshot as a printable HTML document.
func Print(snap bill.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := printTpl.Execute(&buf, snap); err != nil {
		return nil, fmt.Errorf("render print document: %w", err)
	}
	return buf.Bytes(), nil
}
