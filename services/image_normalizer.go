package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

// ImageNormalizer converts an image into a single text unit by invoking the
// captioning capability. A caption failure degrades to a placeholder
// description containing the filename and the error, so one broken image
// never blocks a batch.
type ImageNormalizer struct {
	captioner Captioner
}

// NewImageNormalizer creates an image normalizer.
func NewImageNormalizer(captioner Captioner) *ImageNormalizer {
	return &ImageNormalizer{captioner: captioner}
}

// Normalize captions the image and returns one unit tagged as image content.
func (n *ImageNormalizer) Normalize(ctx context.Context, doc *models.Document) ([]models.NormalizedUnit, error) {
	if len(doc.Raw) == 0 {
		return nil, newValidationError("image %s is empty", doc.SourceName)
	}

	text := n.describe(ctx, doc.Raw, doc.SourceName)
	return []models.NormalizedUnit{{
		Text:     text,
		Modality: models.ModalityImage,
		Metadata: map[string]interface{}{"image_name": doc.SourceName},
	}}, nil
}

// describe captions raw image bytes, degrading to a placeholder on failure
// or when no captioning capability is configured.
func (n *ImageNormalizer) describe(ctx context.Context, image []byte, name string) string {
	if n.captioner == nil {
		return fmt.Sprintf("[image %s: caption unavailable: no captioning provider]", name)
	}
	caption, err := n.captioner.Caption(ctx, image, imageFormat(name))
	if err != nil {
		logger.Warn("image caption failed, using placeholder", "image", name, "error", err)
		return fmt.Sprintf("[image %s: caption unavailable: %v]", name, err)
	}
	return NormalizeWhitespace(caption)
}

func imageFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}
