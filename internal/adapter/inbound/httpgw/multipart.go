package httpgw

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
)

// attachmentPart is one extracted multipart file, ready for classification.
type attachmentPart struct {
	Filename      string
	SHA256        string
	ExtractedText string
	ExtractFailed bool
}

// extractMultipart walks a multipart/form-data body and extracts text
// from every part carrying a filename, per spec §4.10. Parts without a
// filename (plain form fields) are ignored for DLP purposes.
func extractMultipart(body []byte, boundary string) ([]attachmentPart, error) {
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	var parts []attachmentPart

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return parts, fmt.Errorf("read multipart part: %w", err)
		}

		filename := part.FileName()
		if filename == "" {
			_, _ = io.Copy(io.Discard, part)
			_ = part.Close()
			continue
		}

		raw, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			parts = append(parts, attachmentPart{Filename: filename, ExtractFailed: true})
			continue
		}

		sum := sha256.Sum256(raw)
		text, extractErr := extractText(filename, raw)
		parts = append(parts, attachmentPart{
			Filename:      filename,
			SHA256:        hex.EncodeToString(sum[:]),
			ExtractedText: text,
			ExtractFailed: extractErr != nil,
		})
	}

	return parts, nil
}

// extractText dispatches text extraction by filename extension. PDF and
// DOCX extraction are best-effort (no layout, no embedded-object
// support). On an extraction failure ExtractFailed is set; PDF and DOCX
// failures yield an empty string, while a CSV parse error keeps the text
// of the rows read before it.
func extractText(filename string, raw []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return extractPDFText(raw)
	case ".docx":
		return extractDocxText(raw)
	case ".csv":
		return extractCSVText(raw)
	default:
		return string(raw), nil
	}
}

var pdfTextRunPattern = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)

// extractPDFText pulls literal string operands out of Tj text-showing
// operators. It does not decode content stream compression, font
// encoding tables, or TJ kerning arrays; scanned or compressed-stream
// PDFs yield little or no text, consistent with best-effort extraction.
func extractPDFText(raw []byte) (string, error) {
	matches := pdfTextRunPattern.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, m := range matches {
		b.Write(m[1])
		b.WriteByte(' ')
	}
	return unescapePDFString(b.String()), nil
}

func unescapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\(`, "(")
	s = strings.ReplaceAll(s, `\)`, ")")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

var docxTagPattern = regexp.MustCompile(`<[^>]+>`)

// extractDocxText reads word/document.xml out of the DOCX zip container
// and strips XML tags, leaving paragraph text concatenated with spaces.
func extractDocxText(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx zip: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}

		// Insert a separator before XML tags so word-wrap-joined runs
		// don't glue adjacent words together once tags are stripped.
		spaced := docxTagPattern.ReplaceAll(data, []byte(" "))
		text := strings.Join(strings.Fields(string(spaced)), " ")
		return text, nil
	}

	return "", fmt.Errorf("docx missing word/document.xml")
}

// extractCSVText joins every row's fields with spaces and every row with
// a newline, giving the classifier plain text to scan.
func extractCSVText(raw []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.String(), fmt.Errorf("parse csv: %w", err)
		}
		b.WriteString(strings.Join(record, " "))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// multipartBoundary extracts the boundary parameter from a Content-Type
// header, returning "" if the header isn't multipart.
func multipartBoundary(contentType string) (string, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return "", false
	}
	return params["boundary"], params["boundary"] != ""
}
