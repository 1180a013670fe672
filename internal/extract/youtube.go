package extract

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mcqlab/internal/domain"
)

func (e *Extractor) extractYouTube(ctx context.Context, rawURL, videoID string) (Result, error) {
	transcript, err := e.fetchTranscript(ctx, videoID)
	if err != nil {
		return Result{}, fmt.Errorf("youtube transcript: %w", err)
	}

	title, err := e.fetchVideoTitle(ctx, rawURL)
	if err != nil {
		// A missing title should not sink the submission; the video id is
		// still unambiguous.
		title = "YouTube video " + videoID
	}

	return Result{
		Type:     domain.ResourceYouTube,
		Title:    title,
		Content:  transcript,
		ImageURL: e.bestThumbnail(ctx, videoID),
	}, nil
}

type timedTextDoc struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// fetchTranscript pulls the English caption track via the timedtext endpoint.
func (e *Extractor) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	endpoint := fmt.Sprintf("%s?lang=en&v=%s", e.timedTextBase, url.QueryEscape(videoID))
	body, err := e.get(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse captions: %w", err)
	}
	if len(doc.Texts) == 0 {
		return "", fmt.Errorf("no captions available for video %s", videoID)
	}

	var sb strings.Builder
	for _, text := range doc.Texts {
		line := strings.TrimSpace(html.UnescapeString(text.Value))
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
	}
	return sb.String(), nil
}

func (e *Extractor) fetchVideoTitle(ctx context.Context, watchURL string) (string, error) {
	endpoint := fmt.Sprintf("%s?url=%s&format=json", e.youtubeOEmbedBase, url.QueryEscape(watchURL))
	body, err := e.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	var payload struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if payload.Title == "" {
		return "", fmt.Errorf("oembed returned no title")
	}
	return payload.Title, nil
}

// bestThumbnail prefers the high-resolution thumbnail, falling back to
// hqdefault, which exists for every video.
func (e *Extractor) bestThumbnail(ctx context.Context, videoID string) string {
	maxres := fmt.Sprintf("%s/%s/maxresdefault.jpg", e.thumbnailBase, videoID)
	if e.urlExists(ctx, maxres) {
		return maxres
	}
	return fmt.Sprintf("%s/%s/hqdefault.jpg", e.thumbnailBase, videoID)
}

func (e *Extractor) urlExists(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (e *Extractor) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, target)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
