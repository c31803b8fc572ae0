package innertube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sonatura/ytms/internal/shared"
	"golang.org/x/time/rate"
)

func newTestClient(url string) *Client {
	return NewClient(ClientOpts{
		Provider: shared.ProviderConfig{
			PlayerBaseURL:  url,
			MusicBaseURL:   url,
			SuggestBaseURL: url,
		},
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
}

func TestPlayer(t *testing.T) {
	ctx := context.Background()

	t.Run("sends personality context and headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/youtubei/v1/player" {
				t.Errorf("expected player path, got %s", r.URL.Path)
			}
			if got := r.Header.Get("X-YouTube-Client-Name"); got != "21" {
				t.Errorf("expected client name header 21, got %s", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer T1" {
				t.Errorf("expected auth header forwarded, got %s", got)
			}

			var body struct {
				Context struct {
					Client struct {
						ClientName        string `json:"clientName"`
						ClientVersion     string `json:"clientVersion"`
						AndroidSDKVersion int    `json:"androidSdkVersion"`
					} `json:"client"`
				} `json:"context"`
				VideoID        string `json:"videoId"`
				ContentCheckOk bool   `json:"contentCheckOk"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request body: %v", err)
			}
			if body.Context.Client.ClientName != "ANDROID_MUSIC" {
				t.Errorf("expected ANDROID_MUSIC, got %s", body.Context.Client.ClientName)
			}
			if body.Context.Client.AndroidSDKVersion != 30 {
				t.Errorf("expected androidSdkVersion 30, got %d", body.Context.Client.AndroidSDKVersion)
			}
			if body.VideoID != "vid123" || !body.ContentCheckOk {
				t.Errorf("unexpected body %+v", body)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"playabilityStatus": map[string]any{"status": "OK"},
				"streamingData": map[string]any{
					"adaptiveFormats": []map[string]any{
						{"itag": 140, "mimeType": "audio/mp4", "bitrate": 128000, "audioQuality": "AUDIO_QUALITY_MEDIUM", "url": "https://a.example/140"},
					},
				},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		resp, err := c.Player(ctx, AndroidMusic, "vid123", map[string]string{"Authorization": "Bearer T1"})
		if err != nil {
			t.Fatalf("player failed: %v", err)
		}
		if resp.PlayabilityStatus.Status != StatusOK {
			t.Errorf("expected OK, got %s", resp.PlayabilityStatus.Status)
		}
		if !resp.HasStreamingData() {
			t.Error("expected streaming data")
		}
		if resp.StreamingData.AdaptiveFormats[0].Itag != 140 {
			t.Errorf("expected itag 140, got %d", resp.StreamingData.AdaptiveFormats[0].Itag)
		}
	})

	t.Run("decodes embedded error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": 403, "message": "forbidden", "status": "PERMISSION_DENIED"},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		resp, err := c.Player(ctx, Android, "vid123", nil)
		if err != nil {
			t.Fatalf("expected decoded error body, got %v", err)
		}
		if resp.Error == nil || resp.Error.Code != 403 {
			t.Errorf("expected embedded 403 error, got %+v", resp.Error)
		}
	})
}

func TestFormatHelpers(t *testing.T) {
	t.Run("EffectiveBitrate falls back to averageBitrate then zero", func(t *testing.T) {
		if got := (Format{Bitrate: 128}).EffectiveBitrate(); got != 128 {
			t.Errorf("expected 128, got %d", got)
		}
		if got := (Format{AverageBitrate: 96}).EffectiveBitrate(); got != 96 {
			t.Errorf("expected 96, got %d", got)
		}
		if got := (Format{}).EffectiveBitrate(); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("audio detection by mime or audioQuality", func(t *testing.T) {
		if !(Format{MimeType: "audio/mp4"}).HasAudio() {
			t.Error("expected audio mime to count as audio")
		}
		if !(Format{MimeType: "video/mp4", AudioQuality: "AUDIO_QUALITY_LOW"}).HasAudio() {
			t.Error("expected audioQuality to count as audio")
		}
		if (Format{MimeType: "video/mp4"}).HasAudio() {
			t.Error("expected plain video to not count as audio")
		}
	})

	t.Run("video detection by qualityLabel", func(t *testing.T) {
		if !(Format{QualityLabel: "720p"}).HasVideo() {
			t.Error("expected qualityLabel to mark video")
		}
		if (Format{}).HasVideo() {
			t.Error("expected no qualityLabel to mean audio-only")
		}
	})

	t.Run("StreamFormat applies medium-quality default", func(t *testing.T) {
		sf := Format{Itag: 140, MimeType: "audio/mp4", AverageBitrate: 128}.StreamFormat()
		if sf.AudioQuality != "AUDIO_QUALITY_MEDIUM" {
			t.Errorf("expected default quality, got %s", sf.AudioQuality)
		}
		if sf.Bitrate != 128 {
			t.Errorf("expected effective bitrate 128, got %d", sf.Bitrate)
		}
	})
}

// searchFixture mirrors the nesting of a real music search response with two
// songs, one of them missing a video id.
var searchFixture = map[string]any{
	"contents": map[string]any{
		"tabbedSearchResultsRenderer": map[string]any{
			"tabs": []any{
				map[string]any{
					"tabRenderer": map[string]any{
						"content": map[string]any{
							"sectionListRenderer": map[string]any{
								"contents": []any{
									map[string]any{
										"musicShelfRenderer": map[string]any{
											"contents": []any{
												searchItem("vid1", "Song One", "Artist One", "3:42", "//i.ytimg.com/t1.jpg"),
												searchItem("", "No Id", "Nobody", "", ""),
												searchItem("vid2", "Song Two", "Artist Two", "4:05", "https://i.ytimg.com/t2.jpg"),
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	},
}

func searchItem(videoID, title, artist, duration, thumb string) map[string]any {
	col := func(runs ...string) map[string]any {
		rendered := []any{}
		for _, r := range runs {
			rendered = append(rendered, map[string]any{"text": r})
		}
		return map[string]any{
			"musicResponsiveListItemFlexColumnRenderer": map[string]any{
				"text": map[string]any{"runs": rendered},
			},
		}
	}

	return map[string]any{
		"musicResponsiveListItemRenderer": map[string]any{
			"playlistItemData": map[string]any{"videoId": videoID},
			"flexColumns": []any{
				col(title),
				col(artist, " • ", "Album", " • ", duration),
			},
			"thumbnail": map[string]any{
				"musicThumbnailRenderer": map[string]any{
					"thumbnail": map[string]any{
						"thumbnails": []any{map[string]any{"url": thumb, "width": 60, "height": 60}},
					},
				},
			},
		},
	}
}

func TestSearch(t *testing.T) {
	t.Run("normalizes shelf items into songs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/youtubei/v1/search" {
				t.Errorf("expected search path, got %s", r.URL.Path)
			}

			var body struct {
				Context struct {
					Client struct {
						ClientName string `json:"clientName"`
					} `json:"client"`
				} `json:"context"`
				Query string `json:"query"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Context.Client.ClientName != "WEB_REMIX" {
				t.Errorf("expected WEB_REMIX, got %s", body.Context.Client.ClientName)
			}
			if body.Query != "test query" {
				t.Errorf("expected query forwarded, got %s", body.Query)
			}

			json.NewEncoder(w).Encode(searchFixture)
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		songs, err := c.Search(context.Background(), "test query")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}

		if len(songs) != 2 {
			t.Fatalf("expected 2 songs (item without id skipped), got %d", len(songs))
		}
		if songs[0].ID != "vid1" || songs[0].Title != "Song One" || songs[0].Artist != "Artist One" {
			t.Errorf("unexpected first song %+v", songs[0])
		}
		if songs[0].Duration != "3:42" {
			t.Errorf("expected duration from fifth run, got %q", songs[0].Duration)
		}
		if songs[0].Thumbnail != "https://i.ytimg.com/t1.jpg" {
			t.Errorf("expected protocol-relative thumbnail absolutized, got %s", songs[0].Thumbnail)
		}
		if songs[1].Thumbnail != "https://i.ytimg.com/t2.jpg" {
			t.Errorf("expected absolute thumbnail untouched, got %s", songs[1].Thumbnail)
		}
	})

	t.Run("returns error for embedded API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": 401, "message": "unauthorized"},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		if _, err := c.Search(context.Background(), "q"); err == nil {
			t.Fatal("expected error from embedded error body")
		}
	})

	t.Run("empty response yields no songs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		songs, err := c.Search(context.Background(), "q")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(songs) != 0 {
			t.Errorf("expected no songs, got %d", len(songs))
		}
	})
}

func TestSuggestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/complete/search" {
			t.Errorf("expected suggest path, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "daft" {
			t.Errorf("expected query daft, got %s", got)
		}
		w.Write([]byte(`window.google.ac.h(["daft",[["daft punk",0],["daft punk one more time",0]],{}])`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	suggestions, err := c.Suggestions(context.Background(), "daft")
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
	if suggestions[0] != "daft punk" {
		t.Errorf("expected first suggestion 'daft punk', got %s", suggestions[0])
	}
}

func TestRelated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtubei/v1/next" {
			t.Errorf("expected next path, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contents": map[string]any{
				"singleColumnWatchNextResults": map[string]any{
					"results": map[string]any{
						"results": map[string]any{
							"contents": []any{
								map[string]any{
									"compactVideoRenderer": map[string]any{
										"videoId":        "rel1",
										"title":          map[string]any{"simpleText": "Related Song"},
										"longBylineText": map[string]any{"runs": []any{map[string]any{"text": "Related Artist"}}},
										"lengthText":     map[string]any{"simpleText": "2:58"},
										"thumbnail": map[string]any{
											"thumbnails": []any{map[string]any{"url": "//i.ytimg.com/r1.jpg"}},
										},
									},
								},
								map[string]any{"somethingElse": map[string]any{}},
							},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	related, err := c.Related(context.Background(), "vid1", nil)
	if err != nil {
		t.Fatalf("related failed: %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("expected 1 related song, got %d", len(related))
	}
	if related[0].ID != "rel1" || related[0].Artist != "Related Artist" {
		t.Errorf("unexpected related song %+v", related[0])
	}
	if related[0].Thumbnail != "https://i.ytimg.com/r1.jpg" {
		t.Errorf("expected absolutized thumbnail, got %s", related[0].Thumbnail)
	}
}

func TestPlaylist(t *testing.T) {
	t.Run("normalizes header and shelf into tracks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/youtubei/v1/browse" {
				t.Errorf("expected browse path, got %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer T1" {
				t.Errorf("expected auth header forwarded, got %s", got)
			}

			var body struct {
				Context struct {
					Client struct {
						ClientName string `json:"clientName"`
					} `json:"client"`
				} `json:"context"`
				BrowseID string `json:"browseId"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Context.Client.ClientName != "WEB_REMIX" {
				t.Errorf("expected WEB_REMIX, got %s", body.Context.Client.ClientName)
			}
			if body.BrowseID != "VLPL123" {
				t.Errorf("expected VL-prefixed browse id, got %s", body.BrowseID)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"header": map[string]any{
					"musicDetailHeaderRenderer": map[string]any{
						"title":       map[string]any{"runs": []any{map[string]any{"text": "Road Trip"}}},
						"description": map[string]any{"runs": []any{map[string]any{"text": "Songs for the drive"}}},
						"thumbnail": map[string]any{
							"croppedSquareThumbnailRenderer": map[string]any{
								"thumbnail": map[string]any{
									"thumbnails": []any{map[string]any{"url": "https://i.ytimg.com/pl.jpg", "width": 226, "height": 226}},
								},
							},
						},
					},
				},
				"contents": map[string]any{
					"singleColumnBrowseResultsRenderer": map[string]any{
						"tabs": []any{
							map[string]any{
								"tabRenderer": map[string]any{
									"content": map[string]any{
										"sectionListRenderer": map[string]any{
											"contents": []any{
												map[string]any{
													"musicPlaylistShelfRenderer": map[string]any{
														"contents": []any{
															searchItem("vid1", "Song One", "Artist One", "3:42", "//i.ytimg.com/t1.jpg"),
															searchItem("vid2", "Song Two", "Artist Two", "4:05", "https://i.ytimg.com/t2.jpg"),
														},
													},
												},
											},
										},
									},
								},
							},
						},
					},
				},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		playlist, err := c.Playlist(context.Background(), "PL123", map[string]string{"Authorization": "Bearer T1"})
		if err != nil {
			t.Fatalf("playlist failed: %v", err)
		}

		if playlist.ID != "PL123" || playlist.Title != "Road Trip" {
			t.Errorf("unexpected playlist header %+v", playlist)
		}
		if playlist.Description != "Songs for the drive" {
			t.Errorf("unexpected description %q", playlist.Description)
		}
		if playlist.TrackCount != 2 || len(playlist.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got count %d len %d", playlist.TrackCount, len(playlist.Tracks))
		}
		if playlist.Tracks[0].ID != "vid1" || playlist.Tracks[0].Duration != "3:42" {
			t.Errorf("unexpected first track %+v", playlist.Tracks[0])
		}
		if playlist.Tracks[0].Thumbnail != "https://i.ytimg.com/t1.jpg" {
			t.Errorf("expected absolutized thumbnail, got %s", playlist.Tracks[0].Thumbnail)
		}
		if len(playlist.Thumbnails) != 1 {
			t.Errorf("expected one header thumbnail, got %d", len(playlist.Thumbnails))
		}
	})

	t.Run("VL-prefixed id is not double prefixed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				BrowseID string `json:"browseId"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.BrowseID != "VLPL123" {
				t.Errorf("expected VLPL123, got %s", body.BrowseID)
			}
			w.Write([]byte("{}"))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		playlist, err := c.Playlist(context.Background(), "VLPL123", nil)
		if err != nil {
			t.Fatalf("playlist failed: %v", err)
		}
		if playlist.ID != "PL123" {
			t.Errorf("expected bare id, got %s", playlist.ID)
		}
	})

	t.Run("returns error for embedded API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": 404, "message": "not found"},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		if _, err := c.Playlist(context.Background(), "PLmissing", nil); err == nil {
			t.Fatal("expected error from embedded error body")
		}
	})
}

func TestHomeFeed(t *testing.T) {
	t.Run("normalizes carousel shelves", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/youtubei/v1/browse" {
				t.Errorf("expected browse path, got %s", r.URL.Path)
			}

			var body struct {
				BrowseID string `json:"browseId"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.BrowseID != "FEmusic_home" {
				t.Errorf("expected FEmusic_home, got %s", body.BrowseID)
			}

			json.NewEncoder(w).Encode(map[string]any{
				"contents": map[string]any{
					"singleColumnBrowseResultsRenderer": map[string]any{
						"tabs": []any{
							map[string]any{
								"tabRenderer": map[string]any{
									"content": map[string]any{
										"sectionListRenderer": map[string]any{
											"contents": []any{
												map[string]any{
													"musicCarouselShelfRenderer": map[string]any{
														"header": map[string]any{
															"musicCarouselShelfBasicHeaderRenderer": map[string]any{
																"title": map[string]any{"runs": []any{map[string]any{"text": "Quick picks"}}},
															},
														},
														"contents": []any{
															searchItem("vid1", "Song One", "Artist One", "3:42", ""),
														},
													},
												},
												map[string]any{"somethingElse": map[string]any{}},
											},
										},
									},
								},
							},
						},
					},
				},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		shelves, err := c.HomeFeed(context.Background(), nil)
		if err != nil {
			t.Fatalf("home feed failed: %v", err)
		}
		if len(shelves) != 1 {
			t.Fatalf("expected 1 shelf (unknown section skipped), got %d", len(shelves))
		}
		if shelves[0].Title != "Quick picks" {
			t.Errorf("expected shelf title, got %q", shelves[0].Title)
		}
		if len(shelves[0].Songs) != 1 || shelves[0].Songs[0].ID != "vid1" {
			t.Errorf("unexpected shelf songs %+v", shelves[0].Songs)
		}
	})

	t.Run("empty response yields no shelves", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		shelves, err := c.HomeFeed(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(shelves) != 0 {
			t.Errorf("expected no shelves, got %d", len(shelves))
		}
	})
}

func TestVideoInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"playabilityStatus": map[string]any{"status": "OK"},
			"videoDetails": map[string]any{
				"videoId":          "vid1",
				"title":            "A Song",
				"author":           "An Artist",
				"lengthSeconds":    "222",
				"shortDescription": "desc",
				"viewCount":        "1234",
				"thumbnail": map[string]any{
					"thumbnails": []any{map[string]any{"url": "https://i.ytimg.com/v1.jpg", "width": 120, "height": 90}},
				},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	info, err := c.VideoInfo(context.Background(), "vid1", nil)
	if err != nil {
		t.Fatalf("video info failed: %v", err)
	}
	if info.Title != "A Song" || info.Author != "An Artist" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Duration != 222 {
		t.Errorf("expected duration 222, got %d", info.Duration)
	}
	if len(info.Thumbnails) != 1 {
		t.Errorf("expected one thumbnail, got %d", len(info.Thumbnails))
	}
}
