// Package render turns purchase order snapshots into printable PDF
// documents. The pipeline has two stages: BuildOrderDocument assembles a
// layout-independent document model, RenderPDF lays that model out at fixed
// coordinates. Given the same snapshot, parameters and generation timestamp
// the output bytes are identical.
package render

import (
	"time"

	"github.com/atelier-erp/atelier-erp/internal/params"
	"github.com/atelier-erp/atelier-erp/internal/purchasing"
)

// Badge texts on the supplier block.
const (
	badgeAccountHolder  = "Fournisseur en compte"
	badgeInvoicePayment = "Règlement sur facture"
)

// Destination templates for the delivery block.
const (
	deliveryWorkshopLabel = "Livraison à l'atelier :"
	deliverySiteLabel     = "Livraison sur chantier :"
)

// unitPricePlaceholder replaces a zero unit price in the line table.
const unitPricePlaceholder = "À définir"

// Party is a named block of contact lines. Absent fields are omitted so the
// printed block never contains blank lines.
type Party struct {
	Name  string
	Lines []string
}

// TableLine is one printed order line, fully formatted.
type TableLine struct {
	Designation string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// Document is the layout-independent model of a printed order. It is a pure
// value: building it reads nothing and writes nothing.
type Document struct {
	Title       string
	Number      string
	Date        string
	Issuer      Party
	Supplier    Party
	Badge       string
	ProjectRef  string
	ProjectDesc string
	Delivery    []string
	Lines       []TableLine
	TotalHT     string
	Comment     string
	Footer      string
	GeneratedAt time.Time
}

func appendIfSet(lines []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}

func orderTitle(direction purchasing.Direction) string {
	if direction == purchasing.DirectionIncoming {
		return "BON DE COMMANDE ENTRANT"
	}
	return "BON DE COMMANDE"
}

// BuildOrderDocument assembles the document model for a purchase order.
// orgParams supplies the issuer identity; generatedAt stamps the footer and
// is the only time-varying content.
func BuildOrderDocument(snap purchasing.Snapshot, orgParams map[string]string, generatedAt time.Time) Document {
	po := snap.Order

	issuer := Party{Name: orgParams[params.KeyOrgName]}
	issuer.Lines = appendIfSet(issuer.Lines,
		orgParams[params.KeyOrgAddress],
		orgParams[params.KeyOrgPhone],
		orgParams[params.KeyOrgEmail],
	)
	if taxID := orgParams[params.KeyOrgTaxID]; taxID != "" {
		issuer.Lines = append(issuer.Lines, "TVA "+taxID)
	}

	supplier := Party{Name: snap.Supplier.Name}
	supplier.Lines = appendIfSet(supplier.Lines,
		snap.Supplier.Address,
		snap.Supplier.Phone,
		snap.Supplier.Email,
	)
	if snap.Supplier.TaxID != "" {
		supplier.Lines = append(supplier.Lines, "TVA "+snap.Supplier.TaxID)
	}
	badge := badgeInvoicePayment
	if snap.Supplier.AccountHolder {
		badge = badgeAccountHolder
	}

	doc := Document{
		Title:       orderTitle(po.Direction),
		Number:      po.Number,
		Date:        FormatDate(po.CreatedAt),
		Issuer:      issuer,
		Supplier:    supplier,
		Badge:       badge,
		ProjectRef:  snap.ProjectCode,
		ProjectDesc: snap.ClientRef,
		TotalHT:     FormatAmount(po.AmountHT),
		Comment:     po.Comment,
		Footer:      "Document généré le " + FormatDate(generatedAt),
		GeneratedAt: generatedAt,
	}

	switch po.DeliveryMode {
	case purchasing.DeliveryWorkshop:
		doc.Delivery = appendIfSet(nil, deliveryWorkshopLabel, orgParams[params.KeyWorkshopAddress])
	case purchasing.DeliverySite:
		doc.Delivery = appendIfSet(nil, deliverySiteLabel, po.SiteAddress)
	}

	for _, l := range po.Lines {
		unitPrice := unitPricePlaceholder
		amount := unitPricePlaceholder
		if !l.UnitPrice.IsZero() {
			unitPrice = FormatAmount(l.UnitPrice)
			amount = FormatAmount(l.LineAmount)
		}
		doc.Lines = append(doc.Lines, TableLine{
			Designation: l.Designation,
			Quantity:    FormatQuantity(l.Quantity),
			UnitPrice:   unitPrice,
			Amount:      amount,
		})
	}
	if terms := orgParams[params.KeyPaymentTerms]; terms != "" {
		doc.Footer = terms + " - " + doc.Footer
	}
	return doc
}
