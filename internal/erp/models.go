package erp

// DocumentRef is a search hit for a dispatchable sales document.
type DocumentRef struct {
	ID         string `json:"id"`
	Type       string `json:"type"` // FAC / TIQ / PROF
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
}

// Invoice is the header plus required lines of a sales document.
type Invoice struct {
	Header InvoiceHeader `json:"header"`
	Lines  []InvoiceLine `json:"lines"`
}

// InvoiceHeader identifies the document and its customer.
type InvoiceHeader struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	IssuedAt     string `json:"issued_at"`
}

// InvoiceLine is one required line item.
type InvoiceLine struct {
	LineID      string  `json:"line_id"`
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description"`
	Barcode     string  `json:"barcode"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// Product is read-only catalog data.
type Product struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Barcode        string `json:"barcode"`
	Classification string `json:"classification"`
}
