package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ferraz/docqa/internal/models"
	"github.com/ledongthuc/pdf"
)

func decodePDF(_ context.Context, data []byte) (models.Extraction, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: pdf: %v", ErrCorruptInput, err)
	}

	var parts []string
	var sections []models.Section

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages that fail to render are skipped; a document with
			// no readable page at all still fails the empty check.
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		parts = append(parts, text)
		sections = append(sections, models.Section{Kind: "page", Index: pageNum - 1})
	}

	return models.Extraction{
		Text:     strings.Join(parts, "\n\n"),
		Sections: sections,
	}, nil
}
