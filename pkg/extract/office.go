package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ferraz/docqa/internal/models"
	"github.com/xuri/excelize/v2"
)

func decodeXLSX(_ context.Context, data []byte) (models.Extraction, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: xlsx: %v", ErrCorruptInput, err)
	}
	defer book.Close()

	var parts []string
	var sections []models.Section

	sheets := book.GetSheetList()
	for i, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return models.Extraction{}, fmt.Errorf("%w: xlsx sheet %q: %v", ErrCorruptInput, sheet, err)
		}

		var lines []string
		for _, row := range rows {
			lines = append(lines, strings.Join(row, " | "))
		}
		if len(lines) == 0 {
			continue
		}

		if len(sheets) > 1 {
			parts = append(parts, fmt.Sprintf("=== %s ===\n%s", sheet, strings.Join(lines, "\n")))
		} else {
			parts = append(parts, strings.Join(lines, "\n"))
		}
		sections = append(sections, models.Section{Kind: "sheet", Index: i, Label: sheet})
	}

	return models.Extraction{
		Text:     strings.Join(parts, "\n\n"),
		Sections: sections,
	}, nil
}

// decodeDOCX reads word/document.xml out of the OOXML archive and
// collects run text, breaking lines at paragraph ends.
func decodeDOCX(_ context.Context, data []byte) (models.Extraction, error) {
	doc, err := readZipEntry(data, "word/document.xml")
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: docx: %v", ErrCorruptInput, err)
	}

	text, err := ooxmlText(doc, "t", "p")
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: docx: %v", ErrCorruptInput, err)
	}

	return models.Extraction{Text: text}, nil
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func decodePPTX(_ context.Context, data []byte) (models.Extraction, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: pptx: %v", ErrCorruptInput, err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range archive.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	var sections []models.Section

	for _, s := range slides {
		raw, err := readFileEntry(s.file)
		if err != nil {
			return models.Extraction{}, fmt.Errorf("%w: pptx slide %d: %v", ErrCorruptInput, s.num, err)
		}

		text, err := ooxmlText(raw, "t", "p")
		if err != nil {
			return models.Extraction{}, fmt.Errorf("%w: pptx slide %d: %v", ErrCorruptInput, s.num, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		parts = append(parts, fmt.Sprintf("=== Slide %d ===\n%s", s.num, text))
		sections = append(sections, models.Section{Kind: "slide", Index: s.num - 1})
	}

	return models.Extraction{
		Text:     strings.Join(parts, "\n\n"),
		Sections: sections,
	}, nil
}

// ooxmlText walks an OOXML part collecting character data inside
// textElem elements and emitting a newline when paraElem closes.
func ooxmlText(raw []byte, textElem, paraElem string) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))

	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == textElem {
				inText = false
			}
			if t.Name.Local == paraElem {
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

func readZipEntry(data []byte, name string) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range archive.File {
		if f.Name == name {
			return readFileEntry(f)
		}
	}
	return nil, fmt.Errorf("missing archive entry %s", name)
}

func readFileEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
