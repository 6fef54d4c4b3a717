package models

import "time"

// Modality identifies the content type of a document or chunk origin.
type Modality string

const (
	ModalityText        Modality = "text"
	ModalityImage       Modality = "image"
	ModalityPDF         Modality = "pdf"
	ModalitySpreadsheet Modality = "spreadsheet"

	// Chunk-level tags for content extracted from PDF pages.
	ModalityPDFText  Modality = "pdf-text"
	ModalityPDFImage Modality = "pdf-image"
)

// PDFType classifies a PDF document by the distribution of its page contents.
type PDFType string

const (
	PDFTypeText  PDFType = "text"
	PDFTypeImage PDFType = "image"
	PDFTypeMixed PDFType = "mixed"
)

// Document is a unit of user-submitted content. It is owned by the ingestion
// pipeline for the duration of processing and not retained afterwards; the
// vector store is the system of record once chunks are produced.
type Document struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	Path       string    `json:"path,omitempty"`
	Raw        []byte    `json:"-"`
	Modality   Modality  `json:"modality"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NormalizedUnit is the uniform representation a modality normalizer produces
// before chunking: plain text plus a modality tag and source metadata. A
// document may normalize into several units (one per PDF page or sheet).
type NormalizedUnit struct {
	Text     string
	Modality Modality
	Page     int
	Metadata map[string]interface{}
}
