package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

// PDFNormalizer handles PDFs with text, image, or mixed content. Each page is
// classified by its extractable text: pages at or above the threshold go
// through the text path, the rest are rasterized and captioned. Page order is
// preserved in the emitted units so chunk positions can reconstruct document
// structure.
type PDFNormalizer struct {
	image        *ImageNormalizer
	minTextChars int
}

// NewPDFNormalizer creates a PDF normalizer. minTextChars is the minimum
// extractable character count for a page to be treated as a text page.
func NewPDFNormalizer(image *ImageNormalizer, minTextChars int) *PDFNormalizer {
	if minTextChars <= 0 {
		minTextChars = 32
	}
	return &PDFNormalizer{image: image, minTextChars: minTextChars}
}

// Normalize classifies and extracts every page, one unit per page.
func (n *PDFNormalizer) Normalize(ctx context.Context, doc *models.Document) ([]models.NormalizedUnit, error) {
	if len(doc.Raw) == 0 {
		return nil, newValidationError("pdf %s is empty", doc.SourceName)
	}

	reader, err := pdf.NewReader(bytes.NewReader(doc.Raw), int64(len(doc.Raw)))
	if err != nil {
		return nil, newValidationError("pdf %s is unreadable: %v", doc.SourceName, err)
	}

	pageTexts, textPages, imagePages := n.classifyPages(reader)
	if textPages == 0 && imagePages == 0 {
		return nil, newValidationError("pdf %s has no pages", doc.SourceName)
	}
	pdfType := classifyDocument(textPages, imagePages)
	logger.Info("classified pdf", "pdf", doc.SourceName, "type", pdfType,
		"text_pages", textPages, "image_pages", imagePages)

	units := make([]models.NormalizedUnit, 0, len(pageTexts))
	for i, pageText := range pageTexts {
		pageNum := i + 1
		meta := map[string]interface{}{"pdf_type": string(pdfType)}

		if pageText != "" {
			units = append(units, models.NormalizedUnit{
				Text:     pageText,
				Modality: models.ModalityPDFText,
				Page:     pageNum,
				Metadata: meta,
			})
			continue
		}

		units = append(units, models.NormalizedUnit{
			Text:     n.describePage(ctx, doc, pageNum),
			Modality: models.ModalityPDFImage,
			Page:     pageNum,
			Metadata: meta,
		})
	}
	return units, nil
}

// classifyPages extracts per-page text; entries below the threshold are
// emptied and counted as image pages.
func (n *PDFNormalizer) classifyPages(reader *pdf.Reader) (pageTexts []string, textPages, imagePages int) {
	total := reader.NumPage()
	pageTexts = make([]string, total)

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			imagePages++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			imagePages++
			continue
		}
		text = NormalizeWhitespace(text)
		if len(text) >= n.minTextChars {
			pageTexts[i-1] = text
			textPages++
		} else {
			imagePages++
		}
	}
	return pageTexts, textPages, imagePages
}

// describePage rasterizes one page and runs it through the caption path. Any
// failure degrades to a placeholder, mirroring the image normalizer.
func (n *PDFNormalizer) describePage(ctx context.Context, doc *models.Document, pageNum int) string {
	name := fmt.Sprintf("%s#page%d", doc.SourceName, pageNum)
	png, err := rasterizePage(ctx, doc.Raw, pageNum)
	if err != nil {
		logger.Warn("pdf page rasterization failed, using placeholder",
			"pdf", doc.SourceName, "page", pageNum, "error", err)
		return fmt.Sprintf("[image %s: rasterization unavailable: %v]", name, err)
	}
	return n.image.describe(ctx, png, name+".png")
}

func classifyDocument(textPages, imagePages int) models.PDFType {
	switch {
	case imagePages == 0:
		return models.PDFTypeText
	case textPages == 0:
		return models.PDFTypeImage
	default:
		return models.PDFTypeMixed
	}
}

// rasterizePage renders one PDF page to PNG with poppler's pdftoppm.
func rasterizePage(ctx context.Context, raw []byte, pageNum int) ([]byte, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil, fmt.Errorf("pdftoppm not installed: %w", err)
	}

	dir, err := os.MkdirTemp("", "rag-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(src, raw, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	out := filepath.Join(dir, "page")
	page := strconv.Itoa(pageNum)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png", "-singlefile", "-r", "150", "-f", page, "-l", page, src, out)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	png, err := os.ReadFile(out + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to read rasterized page: %w", err)
	}
	return png, nil
}
