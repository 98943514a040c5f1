package server

// CertifyRequest selects invoices for a manual certification batch. An
// empty id list means every eligible invoice.
type CertifyRequest struct {
	IDs []uint `json:"ids"`
}

// CertifyResponse summarizes a certification batch.
type CertifyResponse struct {
	Processed int `json:"processed"`
	Certified int `json:"certified"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
