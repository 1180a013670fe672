package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mcqlab/internal/domain"
)

// extractArticle scrapes visible text from a generic page. Script, style and
// navigation chrome are stripped; semantic content containers are preferred
// over the whole body when present.
func (e *Extractor) extractArticle(ctx context.Context, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "mcqlab/1.0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetch article: http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("parse article: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, aside, iframe").Remove()

	content := pickContent(doc)
	if content == "" {
		return Result{}, fmt.Errorf("no readable text at %s", rawURL)
	}

	return Result{
		Type:     domain.ResourceArticle,
		Title:    pickTitle(doc, rawURL),
		Content:  content,
		ImageURL: pickImage(doc),
	}, nil
}

// pickContent walks the usual content containers before falling back to body.
func pickContent(doc *goquery.Document) string {
	for _, selector := range []string{"article", "main", "[role=main]", "#content", ".post-content", "body"} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := collapseWhitespace(sel.Text())
		if len(text) >= 200 || selector == "body" {
			return text
		}
	}
	return ""
}

func pickTitle(doc *goquery.Document, rawURL string) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		return strings.TrimSpace(og)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return rawURL
}

func pickImage(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	if link, ok := doc.Find(`link[rel="image_src"]`).Attr("href"); ok {
		return strings.TrimSpace(link)
	}
	return ""
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
