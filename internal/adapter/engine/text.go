package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/plastinin/docconverter/internal/domain"
)

func (e *FitzEngine) ConvertToTxt(ctx context.Context, src, _, out string, opts domain.TxtOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeTXT, src, opts.PageRanges, func(j *job) error {
		var b strings.Builder
		err := j.eachPage(func(n, page int) error {
			text, err := e.pageText(j, page, opts.EnableOCR)
			if err != nil {
				return err
			}
			if n > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.TrimRight(text, "\n"))
			b.WriteString("\n")
			return nil
		})
		if err != nil {
			return err
		}
		return writeFile(out, []byte(b.String()))
	})
}

func (e *FitzEngine) ConvertToRtf(ctx context.Context, src, _, out string, opts domain.RtfOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeRTF, src, opts.PageRanges, func(j *job) error {
		var b strings.Builder
		b.WriteString(`{\rtf1\ansi\deff0{\fonttbl{\f0 Helvetica;}}` + "\n")
		err := j.eachPage(func(n, page int) error {
			text, err := e.pageText(j, page, opts.EnableOCR)
			if err != nil {
				return err
			}
			if n > 0 {
				b.WriteString(`\page` + "\n")
			}
			writeRTF(&b, text)
			return nil
		})
		if err != nil {
			return err
		}
		b.WriteString("}\n")
		return writeFile(out, []byte(b.String()))
	})
}

// writeRTF экранирует текст для RTF; не-ASCII символы пишутся через \uN
func writeRTF(b *strings.Builder, text string) {
	for _, r := range text {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\par` + "\n")
		case r == '\r':
		case r < 0x80:
			b.WriteRune(r)
		case r <= 0xFFFF:
			// RTF хранит \u как знаковое 16-битное число
			fmt.Fprintf(b, `\u%d?`, int16(uint16(r)))
		default:
			b.WriteByte('?')
		}
	}
}

func (e *FitzEngine) ConvertToMarkdown(ctx context.Context, src, _, out string, opts domain.MarkdownOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeMarkdown, src, opts.PageRanges, func(j *job) error {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n", strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))

		err := j.eachPage(func(_, page int) error {
			text, err := e.pageText(j, page, opts.EnableOCR)
			if err != nil {
				return err
			}
			fmt.Fprintf(&b, "\n## Page %d\n\n", page+1)

			if opts.ContainImage {
				rel, err := e.writePagePreview(j, page, assetsDir(out))
				if err != nil {
					return err
				}
				fmt.Fprintf(&b, "![Page %d](%s)\n\n", page+1, rel)
			}

			for _, para := range paragraphs(text) {
				b.WriteString(para)
				b.WriteString("\n\n")
			}
			return nil
		})
		if err != nil {
			return err
		}
		return writeFile(out, []byte(b.String()))
	})
}

type jsonDocument struct {
	Source    string     `json:"source"`
	PageCount int        `json:"page_count"`
	Pages     []jsonPage `json:"pages"`
}

type jsonPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Image  string `json:"image,omitempty"`
}

func (e *FitzEngine) ConvertToJson(ctx context.Context, src, _, out string, opts domain.JsonOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeJSON, src, opts.PageRanges, func(j *job) error {
		result := jsonDocument{
			Source:    filepath.Base(src),
			PageCount: j.doc.NumPage(),
			Pages:     make([]jsonPage, 0, len(j.pages)),
		}

		err := j.eachPage(func(_, page int) error {
			text, err := e.pageText(j, page, opts.EnableOCR)
			if err != nil {
				return err
			}
			p := jsonPage{Number: page + 1, Text: text}
			if opts.ContainImage {
				if p.Image, err = e.writePagePreview(j, page, assetsDir(out)); err != nil {
					return err
				}
			}
			result.Pages = append(result.Pages, p)
			return nil
		})
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		return writeFile(out, data)
	})
}

// ConvertToHtml пишет один HTML-файл или файл на каждую страницу с оглавлением.
// Ресурсы лежат в том же каталоге, что и out.
func (e *FitzEngine) ConvertToHtml(ctx context.Context, src, _, out string, opts domain.HtmlOptions) domain.ErrorCode {
	return e.run(ctx, domain.ConversionTypeHTML, src, opts.PageRanges, func(j *job) error {
		title := html.EscapeString(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
		dir := filepath.Dir(out)

		var body strings.Builder
		err := j.eachPage(func(_, page int) error {
			fragment, err := j.doc.HTML(page, false)
			if err != nil {
				return fmt.Errorf("failed to render page %d: %w", page+1, err)
			}

			if opts.HtmlPageOption == domain.HtmlMultiplePage {
				name := fmt.Sprintf("page_%03d.html", page+1)
				pageTitle := fmt.Sprintf("%s, page %d", title, page+1)
				if err := writeFile(filepath.Join(dir, name), htmlDocument(pageTitle, fragment)); err != nil {
					return err
				}
				fmt.Fprintf(&body, "<li><a href=\"%s\">Page %d</a></li>\n", name, page+1)
				return nil
			}

			body.WriteString(fragment)
			body.WriteString("\n")
			return nil
		})
		if err != nil {
			return err
		}

		content := body.String()
		if opts.HtmlPageOption == domain.HtmlMultiplePage {
			content = "<ul>\n" + content + "</ul>\n"
		}
		return writeFile(out, htmlDocument(title, content))
	})
}

func htmlDocument(title, body string) []byte {
	return []byte("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		title + "</title>\n</head>\n<body>\n" + body + "</body>\n</html>\n")
}

// paragraphs разбивает текст страницы на абзацы по пустым строкам
func paragraphs(text string) []string {
	var result []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			result = append(result, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return result
}
