package services

import (
	"context"

	"multimodal-rag-platform/models"
)

// Normalizer converts one document type into uniform (text, modality,
// metadata) units ready for chunking.
type Normalizer interface {
	Normalize(ctx context.Context, doc *models.Document) ([]models.NormalizedUnit, error)
}

// NormalizerRegistry maps declared document modalities to normalizers.
type NormalizerRegistry struct {
	byModality map[models.Modality]Normalizer
}

// NewNormalizerRegistry builds the default registry. The captioner is used by
// the image path and by image pages inside PDFs.
func NewNormalizerRegistry(captioner Captioner, minPDFTextChars int) *NormalizerRegistry {
	image := NewImageNormalizer(captioner)
	return &NormalizerRegistry{
		byModality: map[models.Modality]Normalizer{
			models.ModalityText:        NewTextNormalizer(),
			models.ModalityImage:       image,
			models.ModalityPDF:         NewPDFNormalizer(image, minPDFTextChars),
			models.ModalitySpreadsheet: NewSheetNormalizer(),
		},
	}
}

// For returns the normalizer for a modality, or a ValidationError for
// unsupported types.
func (r *NormalizerRegistry) For(m models.Modality) (Normalizer, error) {
	n, ok := r.byModality[m]
	if !ok {
		return nil, newValidationError("unsupported modality %q", m)
	}
	return n, nil
}
