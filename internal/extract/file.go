package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"mcqlab/internal/domain"
)

// ExtractFile pulls text out of an uploaded document by extension. The title
// is the bare file name without its extension.
func ExtractFile(filename string, data []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	var (
		content string
		err     error
	)
	switch ext {
	case ".pdf":
		content, err = pdfText(data)
	case ".docx":
		content, err = docxText(data)
	case ".txt", ".md":
		content = string(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ext)
	}
	if err != nil {
		return Result{}, err
	}

	content = Sanitize(content)
	if content == "" {
		return Result{}, fmt.Errorf("no text extracted from %s", filename)
	}
	return Result{
		Type:    domain.ResourceDocument,
		Title:   title,
		Content: content,
	}, nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("pdf contained no extractable text")
	}
	return sb.String(), nil
}

// docx is a zip archive; the body lives in word/document.xml. Paragraph and
// run elements are flattened into plain text.
func docxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var docXML io.ReadCloser
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			docXML, err = file.Open()
			if err != nil {
				return "", fmt.Errorf("open document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}
	defer docXML.Close()

	decoder := xml.NewDecoder(docXML)
	var sb strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		switch el := token.(type) {
		case xml.CharData:
			sb.Write(el)
		case xml.EndElement:
			// paragraph boundaries become newlines
			if el.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), nil
}
