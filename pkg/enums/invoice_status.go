package enums

// InvoiceStatus records the billing outcome captured for a provider invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusOpen          InvoiceStatus = "OPEN"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusUncollectible InvoiceStatus = "UNCOLLECTIBLE"
	InvoiceStatusVoid          InvoiceStatus = "VOID"
)

var invoiceStatuses = newSet("invoice status",
	InvoiceStatusDraft,
	InvoiceStatusOpen,
	InvoiceStatusPaid,
	InvoiceStatusUncollectible,
	InvoiceStatusVoid,
)

func (s InvoiceStatus) String() string { return string(s) }

func (s InvoiceStatus) IsValid() bool { return invoiceStatuses.has(s) }

func ParseInvoiceStatus(value string) (InvoiceStatus, error) { return invoiceStatuses.parse(value) }
