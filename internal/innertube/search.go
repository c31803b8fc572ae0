package innertube

import (
	"context"
	"fmt"
	"strings"

	"github.com/sonatura/ytms/internal/models"
)

// The search response buries each result a dozen renderer levels deep.
// These structs mirror only the paths we read; everything else falls away at
// decode time, and absent fields decode to zero values that the normalize
// step replaces with one documented default each.

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

// run returns the text of run i, or fallback when the run is absent.
func (t textRuns) run(i int, fallback string) string {
	if i < 0 || i >= len(t.Runs) {
		return fallback
	}
	return t.Runs[i].Text
}

type flexColumn struct {
	MusicResponsiveListItemFlexColumnRenderer struct {
		Text textRuns `json:"text"`
	} `json:"musicResponsiveListItemFlexColumnRenderer"`
}

type musicThumbnail struct {
	MusicThumbnailRenderer struct {
		Thumbnail struct {
			Thumbnails []models.Thumbnail `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"musicThumbnailRenderer"`
}

type searchListItem struct {
	PlaylistItemData struct {
		VideoID string `json:"videoId"`
	} `json:"playlistItemData"`
	Overlay struct {
		MusicItemThumbnailOverlayRenderer struct {
			Content struct {
				MusicPlayButtonRenderer struct {
					PlayNavigationEndpoint struct {
						WatchEndpoint struct {
							VideoID string `json:"videoId"`
						} `json:"watchEndpoint"`
					} `json:"playNavigationEndpoint"`
				} `json:"musicPlayButtonRenderer"`
			} `json:"content"`
		} `json:"musicItemThumbnailOverlayRenderer"`
	} `json:"overlay"`
	FlexColumns []flexColumn   `json:"flexColumns"`
	Thumbnail   musicThumbnail `json:"thumbnail"`
}

func (i *searchListItem) videoID() string {
	if i.PlaylistItemData.VideoID != "" {
		return i.PlaylistItemData.VideoID
	}
	return i.Overlay.MusicItemThumbnailOverlayRenderer.Content.
		MusicPlayButtonRenderer.PlayNavigationEndpoint.WatchEndpoint.VideoID
}

func (i *searchListItem) column(n int) textRuns {
	if n >= len(i.FlexColumns) {
		return textRuns{}
	}
	return i.FlexColumns[n].MusicResponsiveListItemFlexColumnRenderer.Text
}

type searchResponse struct {
	Error    *APIError `json:"error"`
	Contents struct {
		TabbedSearchResultsRenderer struct {
			Tabs []struct {
				TabRenderer struct {
					Content struct {
						SectionListRenderer struct {
							Contents []struct {
								MusicShelfRenderer struct {
									Contents []struct {
										MusicResponsiveListItemRenderer *searchListItem `json:"musicResponsiveListItemRenderer"`
									} `json:"contents"`
								} `json:"musicShelfRenderer"`
							} `json:"contents"`
						} `json:"sectionListRenderer"`
					} `json:"content"`
				} `json:"tabRenderer"`
			} `json:"tabs"`
		} `json:"tabbedSearchResultsRenderer"`
	} `json:"contents"`
}

// absoluteURL upgrades the protocol-relative thumbnail URLs music search
// returns.
func absoluteURL(url string) string {
	if strings.HasPrefix(url, "//") {
		return "https:" + url
	}
	return url
}

// Search queries YouTube Music as the WEB_REMIX personality and normalizes
// each shelf item into a [models.Song].
func (c *Client) Search(ctx context.Context, query string) ([]models.Song, error) {
	c.logger.Debugf("searching for %q", query)

	body := map[string]any{
		"context": WebRemix.context(),
		"query":   query,
	}

	var resp searchResponse
	url := c.musicBaseURL + "/youtubei/v1/search?prettyPrint=false"
	headers := map[string]string{
		"Origin":  defaultMusicBaseURL,
		"Referer": defaultMusicBaseURL + "/",
	}
	if err := c.post(ctx, url, WebRemix, headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("search error: status %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var songs []models.Song
	tabs := resp.Contents.TabbedSearchResultsRenderer.Tabs
	if len(tabs) == 0 {
		return songs, nil
	}

	for _, section := range tabs[0].TabRenderer.Content.SectionListRenderer.Contents {
		for _, item := range section.MusicShelfRenderer.Contents {
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
	}

	c.logger.Debugf("found %d songs", len(songs))
	return songs, nil
}
