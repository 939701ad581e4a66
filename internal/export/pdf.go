package export

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/hmaji/billfold/internal/bill"
)

// PDF renders the snapshot as a paginated A4 document with the same content
// as the print view: client, generation date, one row per line, total.
func PDF(snap bill.Snapshot) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12, text.NewCol(12, "Invoice / Bill", props.Text{
		Size:  16,
		Style: fontstyle.Bold,
		Align: align.Center,
	}))
	m.AddRow(6, text.NewCol(12, "Client: "+snap.ClientName, props.Text{Size: 10}))
	m.AddRow(6, text.NewCol(12, "Date Generated: "+snap.GeneratedAt.Format("2006-01-02 15:04:05"), props.Text{Size: 10}))
	m.AddRow(6, line.NewCol(12))

	header := props.Text{Size: 10, Style: fontstyle.Bold}
	m.AddRow(8,
		text.NewCol(6, "Product", header),
		text.NewCol(2, "Qty", mergeAlign(header, align.Center)),
		text.NewCol(2, "Unit Price", mergeAlign(header, align.Right)),
		text.NewCol(2, "Total", mergeAlign(header, align.Right)),
	)
	cell := props.Text{Size: 10}
	for _, l := range snap.Lines {
		m.AddRow(7,
			text.NewCol(6, l.Name, cell),
			text.NewCol(2, strconv.Itoa(l.Quantity), mergeAlign(cell, align.Center)),
			text.NewCol(2, Money(l.UnitPrice), mergeAlign(cell, align.Right)),
			text.NewCol(2, Money(l.Total), mergeAlign(cell, align.Right)),
		)
	}

	m.AddRow(6, line.NewCol(12))
	m.AddRow(10, text.NewCol(12, "Total Amount: "+Money(snap.TotalAmount), props.Text{
		Size:  12,
		Style: fontstyle.Bold,
		Align: align.Right,
	}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate bill pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func mergeAlign(base props.Text, a align.Type) props.Text {
	base.Align = a
	return base
}
