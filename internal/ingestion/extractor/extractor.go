package extractor

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

// Extractor pulls normalized text out of uploaded PDF bytes. A single page
// failing to extract is logged and skipped; only a document with no
// extractable text at all is a parsing failure.
type Extractor struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Extractor {
	return &Extractor{log: log.With("service", "Extractor")}
}

func (e *Extractor) ExtractText(fileBytes []byte, filename string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return "", &apperr.ParsingError{Msg: "corrupted or invalid PDF file", Err: err}
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return "", &apperr.ParsingError{Msg: "PDF document has no pages"}
	}

	var pages []string
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.log.Warn("Page extraction failed, skipping",
				"filename", filename,
				"page", i,
				"error", err,
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}

	if len(pages) == 0 {
		return "", &apperr.ParsingError{Msg: "no text content could be extracted from PDF"}
	}

	cleaned := NormalizeText(strings.Join(pages, "\n\n"))

	e.log.Info("Document parsed",
		"filename", filename,
		"pages", len(pages),
		"text_length", len(cleaned),
	)

	return cleaned, nil
}
