// Package extract turns user submissions (URLs, uploads, pasted text) into
// plain text plus presentation metadata for the generation pipeline.
package extract

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcqlab/internal/domain"
)

// Result is the extracted payload for one submission.
type Result struct {
	Type     domain.ResourceType `json:"type"`
	Title    string              `json:"title"`
	Content  string              `json:"content"`
	ImageURL string              `json:"imageUrl,omitempty"`
}

// Extractor fetches and parses remote content. The HTTP client and endpoint
// bases are injectable so tests can point it at local servers.
type Extractor struct {
	httpClient *http.Client

	// overridable in tests
	youtubeOEmbedBase string
	timedTextBase     string
	thumbnailBase     string
}

func NewExtractor() *Extractor {
	return &Extractor{
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		youtubeOEmbedBase: "https://www.youtube.com/oembed",
		timedTextBase:     "https://video.google.com/timedtext",
		thumbnailBase:     "https://i.ytimg.com/vi",
	}
}

// ExtractURL dispatches on the URL host: YouTube links yield a caption
// transcript and thumbnail, everything else is scraped as an article.
func (e *Extractor) ExtractURL(ctx context.Context, rawURL string) (Result, error) {
	if id, ok := YouTubeVideoID(rawURL); ok {
		return e.extractYouTube(ctx, rawURL, id)
	}
	return e.extractArticle(ctx, rawURL)
}

// YouTubeVideoID parses the video id out of watch, share and shorts URLs.
func YouTubeVideoID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, true
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
				if id != "" {
					return id, true
				}
			}
		}
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id != "" {
			return id, true
		}
	}
	return "", false
}

// Sanitize strips control characters and other non-printable bytes that PDF
// and DOCX extraction tend to leave behind.
func Sanitize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			sb.WriteRune(r)
		case r < 0x20 || r == 0x7f || r == 0xfffd:
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
