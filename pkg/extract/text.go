package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ferraz/docqa/internal/models"
)

func decodeText(_ context.Context, data []byte) (models.Extraction, error) {
	return models.Extraction{Text: decodeBytes(data)}, nil
}

// decodeCSV renders each record as one pipe-separated line and tags it
// with a row section.
func decodeCSV(_ context.Context, data []byte) (models.Extraction, error) {
	reader := csv.NewReader(strings.NewReader(decodeBytes(data)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: csv: %v", ErrCorruptInput, err)
	}

	var sb strings.Builder
	sections := make([]models.Section, 0, len(records))
	for i, record := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(record, " | "))
		sections = append(sections, models.Section{Kind: "row", Index: i})
	}

	return models.Extraction{Text: sb.String(), Sections: sections}, nil
}

// decodeBytes interprets data as UTF-8, falling back to Latin-1 for
// legacy exports.
func decodeBytes(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var sb bytes.Buffer
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
