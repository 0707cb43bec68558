package render

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atelier-erp/atelier-erp/internal/params"
	"github.com/atelier-erp/atelier-erp/internal/purchasing"
)

func fixedTime() time.Time {
	return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
}

func sampleSnapshot() purchasing.Snapshot {
	return purchasing.Snapshot{
		Order: purchasing.PurchaseOrder{
			ID:           1,
			Number:       "BDC-2025-004",
			Direction:    purchasing.DirectionOutgoing,
			Status:       purchasing.StatusValidated,
			AmountHT:     decimal.RequireFromString("139.50"),
			DeliveryMode: purchasing.DeliveryNone,
			CreatedAt:    time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
			Lines: []purchasing.Line{
				{
					Designation: "Planche chêne 200x20",
					Quantity:    decimal.RequireFromString("3"),
					UnitPrice:   decimal.RequireFromString("42.50"),
					LineAmount:  decimal.RequireFromString("127.50"),
				},
				{
					Designation: "Visserie",
					Quantity:    decimal.RequireFromString("10"),
					UnitPrice:   decimal.Zero,
					LineAmount:  decimal.Zero,
				},
			},
		},
		Supplier: purchasing.Supplier{
			Name:          "Bois & Cie",
			Address:       "4 rue des Érables, 75011 Paris",
			AccountHolder: true,
		},
		Category:    purchasing.Category{Code: "MAT", Label: "Matériaux"},
		ProjectCode: "AFF-042",
		ClientRef:   "Maison Leclerc",
	}
}

func sampleParams() map[string]string {
	return map[string]string{
		params.KeyOrgName:         "Atelier Martin",
		params.KeyOrgAddress:      "12 rue du Faubourg, 69001 Lyon",
		params.KeyOrgTaxID:        "FR12345678901",
		params.KeyWorkshopAddress: "12 rue du Faubourg, 69001 Lyon",
	}
}

func TestBuildOrderDocumentHeader(t *testing.T) {
	doc := BuildOrderDocument(sampleSnapshot(), sampleParams(), fixedTime())

	require.Equal(t, "BON DE COMMANDE", doc.Title)
	require.Equal(t, "BDC-2025-004", doc.Number)
	require.Equal(t, "02/03/2025", doc.Date)
	require.Equal(t, "AFF-042", doc.ProjectRef)
	require.Contains(t, doc.Footer, "14/03/2025")
}

func TestBuildOrderDocumentOmitsAbsentIssuerFields(t *testing.T) {
	orgParams := map[string]string{params.KeyOrgName: "Atelier Martin"}

	doc := BuildOrderDocument(sampleSnapshot(), orgParams, fixedTime())

	// No address, phone, email or tax id: the block holds only the name,
	// with nothing shifted into blank lines.
	require.Equal(t, "Atelier Martin", doc.Issuer.Name)
	require.Empty(t, doc.Issuer.Lines)
}

func TestBuildOrderDocumentSupplierBadge(t *testing.T) {
	snap := sampleSnapshot()
	doc := BuildOrderDocument(snap, sampleParams(), fixedTime())
	require.Equal(t, "Fournisseur en compte", doc.Badge)

	snap.Supplier.AccountHolder = false
	doc = BuildOrderDocument(snap, sampleParams(), fixedTime())
	require.Equal(t, "Règlement sur facture", doc.Badge)
}

func TestBuildOrderDocumentZeroUnitPricePlaceholder(t *testing.T) {
	doc := BuildOrderDocument(sampleSnapshot(), sampleParams(), fixedTime())

	require.Len(t, doc.Lines, 2)
	require.NotEqual(t, "À définir", doc.Lines[0].UnitPrice)
	require.Equal(t, "À définir", doc.Lines[1].UnitPrice)
	require.Equal(t, "À définir", doc.Lines[1].Amount)
}

func TestBuildOrderDocumentDeliveryBlocks(t *testing.T) {
	snap := sampleSnapshot()

	doc := BuildOrderDocument(snap, sampleParams(), fixedTime())
	require.Empty(t, doc.Delivery)

	snap.Order.DeliveryMode = purchasing.DeliveryWorkshop
	doc = BuildOrderDocument(snap, sampleParams(), fixedTime())
	require.Len(t, doc.Delivery, 2)
	require.Equal(t, "Livraison à l'atelier :", doc.Delivery[0])
	require.Equal(t, "12 rue du Faubourg, 69001 Lyon", doc.Delivery[1])

	snap.Order.DeliveryMode = purchasing.DeliverySite
	snap.Order.SiteAddress = "Chantier Leclerc, 8 avenue Foch"
	doc = BuildOrderDocument(snap, sampleParams(), fixedTime())
	require.Len(t, doc.Delivery, 2)
	require.Equal(t, "Livraison sur chantier :", doc.Delivery[0])
	require.Equal(t, "Chantier Leclerc, 8 avenue Foch", doc.Delivery[1])
}

func TestBuildOrderDocumentIncomingTitle(t *testing.T) {
	snap := sampleSnapshot()
	snap.Order.Direction = purchasing.DirectionIncoming

	doc := BuildOrderDocument(snap, sampleParams(), fixedTime())
	require.Equal(t, "BON DE COMMANDE ENTRANT", doc.Title)
}

func TestBuildOrderDocumentIsPure(t *testing.T) {
	snap := sampleSnapshot()
	orgParams := sampleParams()

	a := BuildOrderDocument(snap, orgParams, fixedTime())
	b := BuildOrderDocument(snap, orgParams, fixedTime())
	require.Equal(t, a, b)
}

func TestFormatAmountFrenchConvention(t *testing.T) {
	got := FormatAmount(decimal.RequireFromString("42.5"))
	require.True(t, strings.HasSuffix(got, "€"), "got %q", got)
	require.Contains(t, got, "42,50")

	got = FormatAmount(decimal.RequireFromString("0.1"))
	require.Contains(t, got, "0,10")
}

func TestFormatQuantityTrimsTrailingZeros(t *testing.T) {
	require.Equal(t, "3", FormatQuantity(decimal.RequireFromString("3")))
	require.Equal(t, "2,5", FormatQuantity(decimal.RequireFromString("2.500")))
}

func TestFormatAmountKeepsLargeAmountsExact(t *testing.T) {
	got := FormatAmount(decimal.RequireFromString("1234567890123456.78"))
	require.Equal(t, "1 234 567 890 123 456,78 €", got)

	got = FormatAmount(decimal.RequireFromString("-1234.5"))
	require.Equal(t, "-1 234,50 €", got)
}
