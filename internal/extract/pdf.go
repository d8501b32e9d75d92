package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText extracts the text content of every page of a PDF.
func pdfText(content []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	rs := bytes.NewReader(content)

	ctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := ctx.PageCount

	var sb strings.Builder
	for page := 1; page <= pageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", page, err)
		}

		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}

		text := contentStreamText(raw)
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}

	return sb.String(), nil
}

// contentStreamText pulls the literal strings out of a page content stream.
// Text in a PDF content stream appears as parenthesized literals consumed by
// the Tj/TJ show operators; escaped parentheses inside a literal are
// backslash-prefixed.
func contentStreamText(stream []byte) string {
	var sb strings.Builder
	depth := 0
	escaped := false

	for i := 0; i < len(stream); i++ {
		c := stream[i]

		if depth == 0 {
			if c == '(' {
				depth = 1
			}
			continue
		}

		if escaped {
			switch c {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '(', ')', '\\':
				sb.WriteByte(c)
			}
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				sb.WriteByte(' ')
			} else {
				sb.WriteByte(c)
			}
		default:
			sb.WriteByte(c)
		}
	}

	return strings.TrimSpace(sb.String())
}
