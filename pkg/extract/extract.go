package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ferraz/docqa/internal/models"
	"github.com/ferraz/docqa/internal/types"
)

var (
	// ErrUnsupportedFormat means no decoder is registered for the tag.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptInput means the decoder could not parse the bytes.
	ErrCorruptInput = errors.New("corrupt input")
	// ErrEmptyContent means decoding succeeded but yielded no text.
	ErrEmptyContent = errors.New("no extractable text")
)

// Decoder turns raw bytes of one format into text plus structure.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (models.Extraction, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(ctx context.Context, data []byte) (models.Extraction, error)

func (f DecoderFunc) Decode(ctx context.Context, data []byte) (models.Extraction, error) {
	return f(ctx, data)
}

// Extractor dispatches raw bytes to a format-specific decoder. Adding
// a format is one Register call; nothing else changes.
type Extractor struct {
	decoders map[string]Decoder
}

func New(ocr types.OCRClient) *Extractor {
	e := &Extractor{decoders: make(map[string]Decoder)}

	e.Register("txt", DecoderFunc(decodeText))
	e.Register("csv", DecoderFunc(decodeCSV))
	e.Register("pdf", DecoderFunc(decodePDF))
	e.Register("xlsx", DecoderFunc(decodeXLSX))
	e.Register("docx", DecoderFunc(decodeDOCX))
	e.Register("pptx", DecoderFunc(decodePPTX))

	img := &imageDecoder{ocr: ocr}
	for _, tag := range []string{"jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff"} {
		e.Register(tag, img)
	}

	return e
}

// Register maps a format tag to a decoder, replacing any previous one.
func (e *Extractor) Register(tag string, d Decoder) {
	e.decoders[normalizeTag(tag)] = d
}

// Formats returns the registered format tags.
func (e *Extractor) Formats() []string {
	tags := make([]string, 0, len(e.decoders))
	for tag := range e.decoders {
		tags = append(tags, tag)
	}
	return tags
}

// Extract decodes data according to the format tag. The tag may be a
// bare extension ("pdf"), a dotted one (".pdf"), or a filename.
func (e *Extractor) Extract(ctx context.Context, data []byte, format string) (models.Extraction, error) {
	tag := normalizeTag(format)

	d, ok := e.decoders[tag]
	if !ok {
		return models.Extraction{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
	}

	ex, err := d.Decode(ctx, data)
	if err != nil {
		return models.Extraction{}, err
	}

	if strings.TrimSpace(ex.Text) == "" {
		return models.Extraction{}, fmt.Errorf("%w: format %q", ErrEmptyContent, tag)
	}

	return ex, nil
}

func normalizeTag(format string) string {
	tag := strings.ToLower(strings.TrimSpace(format))
	if i := strings.LastIndex(tag, "."); i >= 0 {
		tag = tag[i+1:]
	}
	return tag
}
