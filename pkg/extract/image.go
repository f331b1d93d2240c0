package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferraz/docqa/internal/models"
	"github.com/ferraz/docqa/internal/types"
)

// imageDecoder delegates to the external OCR service. A failed OCR
// call surfaces as corrupt input rather than aborting silently.
type imageDecoder struct {
	ocr types.OCRClient
}

func (d *imageDecoder) Decode(ctx context.Context, data []byte) (models.Extraction, error) {
	if d.ocr == nil {
		return models.Extraction{}, fmt.Errorf("%w: no OCR service configured", ErrCorruptInput)
	}

	text, err := d.ocr.ExtractText(ctx, data)
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: ocr: %v", ErrCorruptInput, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return models.Extraction{}, nil
	}

	return models.Extraction{
		Text:     text,
		Sections: []models.Section{{Kind: "image", Index: 0}},
	}, nil
}
