// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extract turns uploaded documents into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/des-work/Arcano-Desk-sub001/internal/model"
	"github.com/des-work/Arcano-Desk-sub001/internal/util"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType is returned for documents that are not PDF, DOCX,
	// PPTX or plain text.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmpty is returned for zero-length input.
	ErrEmpty = errors.New("empty file")

	// ErrTooLarge is returned when input exceeds the caller's byte limit.
	ErrTooLarge = errors.New("file too large")
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	// maxPartBytes bounds how much of one zip part is inflated.
	maxPartBytes = 64 << 20
)

// =============================================================================
// DETECTION
// =============================================================================

// Detect sniffs data and returns the document kind. The file name is only
// consulted when the content is ambiguous.
func Detect(name string, data []byte) (model.FileType, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return model.FileTypePDF, nil
	case mt.Is(mimeDOCX):
		return model.FileTypeDOCX, nil
	case mt.Is(mimePPTX):
		return model.FileTypePPTX, nil
	}

	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return detectOpenXML(data)
		case m.Is("text/plain"):
			return model.FileTypeTXT, nil
		}
	}
	if strings.EqualFold(filepath.Ext(name), ".txt") && utf8.Valid(data) {
		return model.FileTypeTXT, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mt.String())
}

// detectOpenXML tells DOCX from PPTX by the parts a zip container holds.
func detectOpenXML(data []byte) (model.FileType, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable zip: %v", ErrUnsupportedType, err)
	}
	var word, ppt bool
	for _, f := range zr.File {
		word = word || strings.HasPrefix(f.Name, "word/")
		ppt = ppt || strings.HasPrefix(f.Name, "ppt/")
	}
	switch {
	case word && !ppt:
		return model.FileTypeDOCX, nil
	case ppt && !word:
		return model.FileTypePPTX, nil
	}
	return "", fmt.Errorf("%w: zip is not a word or powerpoint document", ErrUnsupportedType)
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract detects the document kind and returns its text.
func Extract(name string, data []byte) (model.FileType, string, error) {
	kind, err := Detect(name, data)
	if err != nil {
		return "", "", err
	}

	var text string
	switch kind {
	case model.FileTypePDF:
		text, err = extractPDF(data)
	case model.FileTypeDOCX:
		text, err = extractDOCX(data)
	case model.FileTypePPTX:
		text, err = extractPPTX(data)
	case model.FileTypeTXT:
		text, err = extractText(data)
	}
	if err != nil {
		return kind, "", fmt.Errorf("extract %s: %w", kind, err)
	}
	return kind, util.CollapseBlankLines(util.Normalize(text)), nil
}

// ExtractReader reads r fully, up to limit bytes, and extracts it. Inputs
// over the limit are rejected rather than truncated.
func ExtractReader(name string, r io.Reader, limit int64) (model.FileType, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", "", err
	}
	if int64(len(data)) > limit {
		return "", "", fmt.Errorf("%w: %s exceeds the %d byte upload limit", ErrTooLarge, name, limit)
	}
	return Extract(name, data)
}

func extractText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return string(b), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return partText(f, "t", "p")
		}
	}
	return "", errors.New("word/document.xml not found")
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideName.FindStringSubmatch(path.Clean(f.Name)); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, f: f})
		}
	}
	if len(slides) == 0 {
		return "", errors.New("presentation has no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		text, err := partText(s.f, "t", "p")
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.n, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// partText streams an XML part and concatenates the character data of
// every textTag element, ending a line at each closing paraTag.
func partText(f *zip.File, textTag, paraTag string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, maxPartBytes))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textTag {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textTag:
				inText = false
			case paraTag:
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
