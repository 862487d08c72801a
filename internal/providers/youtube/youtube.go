package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yooventa/tubetalk/internal/cache"
	"github.com/yooventa/tubetalk/internal/utils"
)

// Metadata is the best-effort oEmbed payload for a video.
type Metadata struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Client fetches transcripts and metadata from YouTube's public endpoints.
// Both are external collaborators: metadata is best-effort, transcripts may
// simply not exist (no captions).
type Client struct {
	httpClient *http.Client
	cache      cache.Cache
}

func NewClient(c cache.Cache) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		cache:      c,
	}
}

// ParseVideoID extracts the stable video identifier from a YouTube URL.
func ParseVideoID(rawURL string) (string, error) {
	const op = "youtube.ParseVideoID"

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "invalid video URL", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		if id := strings.TrimPrefix(u.Path, "/"); id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com":
		switch {
		case u.Path == "/watch":
			if id := u.Query().Get("v"); id != "" {
				return id, nil
			}
		case strings.HasPrefix(u.Path, "/embed/"):
			if id := strings.TrimPrefix(u.Path, "/embed/"); id != "" {
				return strings.SplitN(id, "/", 2)[0], nil
			}
		case strings.HasPrefix(u.Path, "/v/"):
			if id := strings.TrimPrefix(u.Path, "/v/"); id != "" {
				return strings.SplitN(id, "/", 2)[0], nil
			}
		}
	}
	return "", utils.E(utils.CodeInvalidArgument, op, "not a recognizable YouTube video URL", nil)
}

// GetMetadata fetches title/author/thumbnail via the oEmbed API.
// Results are cached for a day; callers treat failure as non-fatal.
func (c *Client) GetMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	const op = "youtube.GetMetadata"

	cacheKey := "yt:oembed:" + videoID
	if c.cache != nil {
		var md Metadata
		if hit, _ := c.cache.GetJSON(ctx, cacheKey, &md); hit {
			return &md, nil
		}
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("url", "https://www.youtube.com/watch?v="+videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.youtube.com/oembed?"+q.Encode(), nil)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "oembed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.E(utils.CodeUnavailable, op, fmt.Sprintf("oembed returned %d", resp.StatusCode), nil)
	}

	var md Metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to decode oembed response", err)
	}

	if c.cache != nil {
		_ = c.cache.SetJSON(ctx, cacheKey, &md, 24*time.Hour)
	}
	return &md, nil
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// GetTranscript fetches English captions via the timedtext endpoint and
// renders them as "m:ss - text" segments joined by ", ". Videos without
// captions yield TRANSCRIPT_UNAVAILABLE.
func (c *Client) GetTranscript(ctx context.Context, videoID string) (string, error) {
	const op = "youtube.GetTranscript"

	u := "https://video.google.com/timedtext?lang=en&v=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "timedtext request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to read captions", err)
	}
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		return "", utils.E(utils.CodeTranscriptUnavailable, op, "no captions available for this video", nil)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", utils.E(utils.CodeTranscriptUnavailable, op, "no captions available for this video", err)
	}
	if len(tt.Texts) == 0 {
		return "", utils.E(utils.CodeTranscriptUnavailable, op, "no captions available for this video", nil)
	}

	segments := make([]string, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := strings.TrimSpace(t.Body)
		if text == "" {
			continue
		}
		start := int(t.Start)
		segments = append(segments, fmt.Sprintf("%d:%02d - %s", start/60, start%60, text))
	}
	if len(segments) == 0 {
		return "", utils.E(utils.CodeTranscriptUnavailable, op, "no captions available for this video", nil)
	}
	return strings.Join(segments, ", "), nil
}

var lengthSecondsRe = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)

// GetDuration scrapes the watch page for the video length in seconds.
// Best-effort: callers may ignore the error.
func (c *Client) GetDuration(ctx context.Context, videoID string) (int, error) {
	const op = "youtube.GetDuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.youtube.com/watch?v="+url.QueryEscape(videoID), nil)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "watch page request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "failed to read watch page", err)
	}

	m := lengthSecondsRe.FindSubmatch(body)
	if m == nil {
		return 0, utils.E(utils.CodeNotFound, op, "duration not found", nil)
	}
	n, _ := strconv.Atoi(string(m[1]))
	return n, nil
}
