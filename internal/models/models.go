package models

// Song is a normalized search or browse result.
//
// Duration is the provider's display string ("3:42"), not a count of
// seconds; Thumbnail is always an absolute URL.
type Song struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

// Playlist is a normalized browse result for one playlist: its header
// metadata plus the tracks of its shelf.
type Playlist struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	TrackCount  int         `json:"trackCount"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
	Tracks      []Song      `json:"tracks"`
}

// Shelf is one titled row of the home feed.
type Shelf struct {
	Title string `json:"title"`
	Songs []Song `json:"songs"`
}

// Thumbnail is a single image rendition attached to a video or song.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VideoInfo holds the playable item's metadata from the player endpoint.
type VideoInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Duration    int         `json:"duration"` // Duration in seconds
	Thumbnails  []Thumbnail `json:"thumbnails"`
	Description string      `json:"description"`
	ViewCount   string      `json:"viewCount"`
}

// StreamFormat describes the audio rendition a resolved URL points at.
type StreamFormat struct {
	Itag         int    `json:"itag"`
	MimeType     string `json:"mimeType"`
	Bitrate      int    `json:"bitrate"`
	AudioQuality string `json:"audioQuality"`
}

// StreamResponse is the resolved playable artifact for one video id at one
// point in time. It is never persisted directly; the stream cache wraps the
// URL with a timestamp.
type StreamResponse struct {
	URL    string       `json:"url"`
	Format StreamFormat `json:"format"`
}
