package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"

	"embedding-gateway/models"
)

// PDFService pulls the text layer out of uploaded PDFs so they ride the
// regular text ingest path. Scanned PDFs without a text layer are rejected
// rather than embedded as empty documents.
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// ExtractText returns the concatenated text of all pages. Pages that fail
// to parse are skipped; a PDF where every page fails is unsupported.
func (s *PDFService) ExtractText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read PDF: %v", models.ErrUnsupportedMedia, err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			log.Printf("pdf: failed to extract text from page %d: %v", i, err)
			continue
		}
		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return "", fmt.Errorf("%w: PDF has no extractable text layer", models.ErrUnsupportedMedia)
	}
	return extracted, nil
}
