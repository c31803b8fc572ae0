package innertube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sonatura/ytms/internal/models"
)

// VideoInfo fetches a video's metadata through the player endpoint.
func (c *Client) VideoInfo(ctx context.Context, videoID string, extraHeaders map[string]string) (*models.VideoInfo, error) {
	resp, err := c.Player(ctx, AndroidMusic, videoID, extraHeaders)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("player error: status %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.VideoDetails == nil {
		return nil, fmt.Errorf("no video details for %s", videoID)
	}

	info := resp.VideoDetails.VideoInfo(videoID)
	return &info, nil
}

// The browse endpoint serves both playlist pages and the home feed; the
// response shape only differs in which shelf renderer each section carries.

type shelfItem struct {
	MusicResponsiveListItemRenderer *searchListItem `json:"musicResponsiveListItemRenderer"`
}

type browseSection struct {
	MusicPlaylistShelfRenderer *struct {
		Contents []shelfItem `json:"contents"`
	} `json:"musicPlaylistShelfRenderer"`
	MusicCarouselShelfRenderer *struct {
		Header struct {
			MusicCarouselShelfBasicHeaderRenderer struct {
				Title textRuns `json:"title"`
			} `json:"musicCarouselShelfBasicHeaderRenderer"`
		} `json:"header"`
		Contents []shelfItem `json:"contents"`
	} `json:"musicCarouselShelfRenderer"`
}

type browseResponse struct {
	Error  *APIError `json:"error"`
	Header struct {
		MusicDetailHeaderRenderer struct {
			Title       textRuns `json:"title"`
			Description textRuns `json:"description"`
			Thumbnail   struct {
				CroppedSquareThumbnailRenderer struct {
					Thumbnail struct {
						Thumbnails []models.Thumbnail `json:"thumbnails"`
					} `json:"thumbnail"`
				} `json:"croppedSquareThumbnailRenderer"`
			} `json:"thumbnail"`
		} `json:"musicDetailHeaderRenderer"`
	} `json:"header"`
	Contents struct {
		SingleColumnBrowseResultsRenderer struct {
			Tabs []struct {
				TabRenderer struct {
					Content struct {
						SectionListRenderer struct {
							Contents []browseSection `json:"contents"`
						} `json:"sectionListRenderer"`
					} `json:"content"`
				} `json:"tabRenderer"`
			} `json:"tabs"`
		} `json:"singleColumnBrowseResultsRenderer"`
	} `json:"contents"`
}

func (r *browseResponse) sections() []browseSection {
	tabs := r.Contents.SingleColumnBrowseResultsRenderer.Tabs
	if len(tabs) == 0 {
		return nil
	}
	return tabs[0].TabRenderer.Content.SectionListRenderer.Contents
}

// songsFromShelf normalizes music list items with the same column layout and
// defaults as search results.
func songsFromShelf(items []shelfItem) []models.Song {
	var songs []models.Song
	for _, item := range items {
		renderer := item.MusicResponsiveListItemRenderer
		if renderer == nil {
			continue
		}

		videoID := renderer.videoID()
		if videoID == "" {
			continue
		}

		thumbnail := ""
		if thumbs := renderer.Thumbnail.MusicThumbnailRenderer.Thumbnail.Thumbnails; len(thumbs) > 0 {
			thumbnail = absoluteURL(thumbs[0].URL)
		}

		songs = append(songs, models.Song{
			ID:        videoID,
			Title:     renderer.column(0).run(0, "Unknown"),
			Artist:    renderer.column(1).run(0, "Unknown"),
			Duration:  renderer.column(1).run(4, ""),
			Thumbnail: thumbnail,
		})
	}
	return songs
}

// browseHeaders merges the music origin headers with per-call extras.
func browseHeaders(extra map[string]string) map[string]string {
	headers := map[string]string{
		"Origin":  defaultMusicBaseURL,
		"Referer": defaultMusicBaseURL + "/",
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}

// Playlist fetches one playlist through the browse endpoint as the WEB_REMIX
// personality and normalizes its shelves into tracks. The provider addresses
// playlist pages by a VL-prefixed browse id.
func (c *Client) Playlist(ctx context.Context, playlistID string, extraHeaders map[string]string) (*models.Playlist, error) {
	id := strings.TrimPrefix(playlistID, "VL")
	body := map[string]any{
		"context":  WebRemix.context(),
		"browseId": "VL" + id,
	}

	var resp browseResponse
	endpoint := c.musicBaseURL + "/youtubei/v1/browse?prettyPrint=false"
	if err := c.post(ctx, endpoint, WebRemix, browseHeaders(extraHeaders), body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("browse error: status %d: %s", resp.Error.Code, resp.Error.Message)
	}

	header := resp.Header.MusicDetailHeaderRenderer
	playlist := &models.Playlist{
		ID:          id,
		Title:       header.Title.run(0, "Unknown"),
		Description: header.Description.run(0, ""),
		Thumbnails:  header.Thumbnail.CroppedSquareThumbnailRenderer.Thumbnail.Thumbnails,
	}

	for _, section := range resp.sections() {
		shelf := section.MusicPlaylistShelfRenderer
		if shelf == nil {
			continue
		}
		playlist.TrackCount += len(shelf.Contents)
		playlist.Tracks = append(playlist.Tracks, songsFromShelf(shelf.Contents)...)
	}

	return playlist, nil
}

// HomeFeed fetches the home page shelves. With auth headers attached the
// provider personalizes them; anonymous calls still answer with generic rows.
func (c *Client) HomeFeed(ctx context.Context, extraHeaders map[string]string) ([]models.Shelf, error) {
	body := map[string]any{
		"context":  WebRemix.context(),
		"browseId": "FEmusic_home",
	}

	var resp browseResponse
	endpoint := c.musicBaseURL + "/youtubei/v1/browse?prettyPrint=false"
	if err := c.post(ctx, endpoint, WebRemix, browseHeaders(extraHeaders), body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("browse error: status %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var shelves []models.Shelf
	for _, section := range resp.sections() {
		carousel := section.MusicCarouselShelfRenderer
		if carousel == nil {
			continue
		}
		shelves = append(shelves, models.Shelf{
			Title: carousel.Header.MusicCarouselShelfBasicHeaderRenderer.Title.run(0, ""),
			Songs: songsFromShelf(carousel.Contents),
		})
	}

	return shelves, nil
}

type relatedResponse struct {
	Contents struct {
		SingleColumnWatchNextResults struct {
			Results struct {
				Results struct {
					Contents []struct {
						CompactVideoRenderer *compactVideoRenderer `json:"compactVideoRenderer"`
					} `json:"contents"`
				} `json:"results"`
			} `json:"results"`
		} `json:"singleColumnWatchNextResults"`
	} `json:"contents"`
}

type compactVideoRenderer struct {
	VideoID string `json:"videoId"`
	Title   struct {
		SimpleText string `json:"simpleText"`
	} `json:"title"`
	LongBylineText textRuns `json:"longBylineText"`
	LengthText     struct {
		SimpleText string `json:"simpleText"`
	} `json:"lengthText"`
	Thumbnail struct {
		Thumbnails []models.Thumbnail `json:"thumbnails"`
	} `json:"thumbnail"`
}

// Related fetches watch-next suggestions for a video as the WEB personality.
func (c *Client) Related(ctx context.Context, videoID string, extraHeaders map[string]string) ([]models.Song, error) {
	body := map[string]any{
		"context": Web.context(),
		"videoId": videoID,
	}

	var resp relatedResponse
	endpoint := c.playerBaseURL + "/youtubei/v1/next?prettyPrint=false"
	if err := c.post(ctx, endpoint, Web, extraHeaders, body, &resp); err != nil {
		return nil, err
	}

	var related []models.Song
	for _, item := range resp.Contents.SingleColumnWatchNextResults.Results.Results.Contents {
		renderer := item.CompactVideoRenderer
		if renderer == nil || renderer.VideoID == "" {
			continue
		}

		title := renderer.Title.SimpleText
		if title == "" {
			title = "Unknown"
		}

		thumbnail := ""
		if len(renderer.Thumbnail.Thumbnails) > 0 {
			thumbnail = absoluteURL(renderer.Thumbnail.Thumbnails[0].URL)
		}

		related = append(related, models.Song{
			ID:        renderer.VideoID,
			Title:     title,
			Artist:    renderer.LongBylineText.run(0, "Unknown"),
			Duration:  renderer.LengthText.SimpleText,
			Thumbnail: thumbnail,
		})
	}

	return related, nil
}

// Suggestions fetches search autocompletions.
//
// The endpoint answers with a JSONP-wrapped payload
// (window.google.ac.h([query, [[suggestion, ...], ...])); the wrapper is
// stripped before decoding.
func (c *Client) Suggestions(ctx context.Context, query string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/complete/search?client=youtube&q=%s&ds=yt",
		c.suggestBaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	payload := strings.TrimSpace(string(raw))
	payload = strings.TrimPrefix(payload, "window.google.ac.h(")
	payload = strings.TrimSuffix(payload, ")")

	var decoded []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	if len(decoded) < 2 {
		return nil, nil
	}

	var entries [][]json.RawMessage
	if err := json.Unmarshal(decoded[1], &entries); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion list: %w", err)
	}

	suggestions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if len(entry) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(entry[0], &s); err != nil {
			continue
		}
		suggestions = append(suggestions, s)
	}

	return suggestions, nil
}
