package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type InvoiceData struct {
	OrgName       string
	InvoiceNumber string
	Status        string
	Direction     string
	CustomerName  string
	CustomerVAT   string
	IssueDate     string
	DueDate       string
	Currency      string

	Items []LineItem

	NetTotal string
	TaxTotal string
	Total    string
}

type LineItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	VATRate     string
	LineTotal   string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := "Invoice"
	if data.Status == "draft" {
		title = "Invoice (draft)"
	}
	m.AddRow(14,
		text.NewCol(8, title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.OrgName, props.Text{
			Size:  11,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Issue date: "+data.IssueDate, props.Text{Top: 5}),
			text.New("Due date: "+data.DueDate, props.Text{Top: 10}),
			text.New("Currency: "+data.Currency, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Billed to", props.Text{Style: fontstyle.Bold}),
			text.New(data.CustomerName, props.Text{Top: 5}),
			text.New(data.CustomerVAT, props.Text{Top: 10}),
		),
	)

	m.AddRow(10,
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "VAT", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(5, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, item.VATRate, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.LineTotal, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Net", props.Text{Size: 9, Top: 4}),
		text.NewCol(2, data.NetTotal, props.Text{Size: 9, Align: align.Right, Top: 4}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "VAT", props.Text{Size: 9}),
		text.NewCol(2, data.TaxTotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
