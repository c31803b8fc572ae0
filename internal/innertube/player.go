package innertube

import (
	"strconv"
	"strings"

	"github.com/sonatura/ytms/internal/models"
)

// Playability statuses the resolver reacts to. Anything else is treated as
// playable when streaming data is present.
const (
	StatusOK            = "OK"
	StatusUnplayable    = "UNPLAYABLE"
	StatusLoginRequired = "LOGIN_REQUIRED"
)

// APIError is the error body innertube embeds inside an otherwise normal
// JSON response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// PlayabilityStatus reports whether the provider will stream a video.
type PlayabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Format is one encoded rendition inside streamingData. Absent fields decode
// to their zero values; [Format.EffectiveBitrate] and friends centralize the
// missing-field fallbacks so resolution logic never touches raw optionals.
type Format struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	AverageBitrate  int    `json:"averageBitrate"`
	AudioQuality    string `json:"audioQuality"`
	QualityLabel    string `json:"qualityLabel"`
	SignatureCipher string `json:"signatureCipher"`
}

// EffectiveBitrate falls back to averageBitrate, defaulting to 0.
func (f Format) EffectiveBitrate() int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return 0
}

// HasAudio reports whether the rendition carries an audio track.
func (f Format) HasAudio() bool {
	return strings.Contains(f.MimeType, "audio") || f.AudioQuality != ""
}

// HasVideo reports whether the rendition carries a video track; the provider
// only attaches qualityLabel to video renditions.
func (f Format) HasVideo() bool {
	return f.QualityLabel != ""
}

// StreamFormat converts to the model type, applying the medium-quality
// default the provider omits on some renditions.
func (f Format) StreamFormat() models.StreamFormat {
	quality := f.AudioQuality
	if quality == "" {
		quality = "AUDIO_QUALITY_MEDIUM"
	}
	return models.StreamFormat{
		Itag:         f.Itag,
		MimeType:     f.MimeType,
		Bitrate:      f.EffectiveBitrate(),
		AudioQuality: quality,
	}
}

// StreamingData holds the rendition lists of a playable response.
type StreamingData struct {
	ExpiresInSeconds string   `json:"expiresInSeconds"`
	AdaptiveFormats  []Format `json:"adaptiveFormats"`
	Formats          []Format `json:"formats"`
}

// Merged returns adaptiveFormats followed by formats as one list.
func (s *StreamingData) Merged() []Format {
	merged := make([]Format, 0, len(s.AdaptiveFormats)+len(s.Formats))
	merged = append(merged, s.AdaptiveFormats...)
	merged = append(merged, s.Formats...)
	return merged
}

type videoThumbnail struct {
	Thumbnails []models.Thumbnail `json:"thumbnails"`
}

// VideoDetails is the metadata block of a player response.
type VideoDetails struct {
	VideoID          string         `json:"videoId"`
	Title            string         `json:"title"`
	Author           string         `json:"author"`
	LengthSeconds    string         `json:"lengthSeconds"`
	ShortDescription string         `json:"shortDescription"`
	ViewCount        string         `json:"viewCount"`
	Thumbnail        videoThumbnail `json:"thumbnail"`
}

// VideoInfo normalizes the details block into the model type.
func (d *VideoDetails) VideoInfo(videoID string) models.VideoInfo {
	duration, _ := strconv.Atoi(d.LengthSeconds)
	return models.VideoInfo{
		ID:          videoID,
		Title:       d.Title,
		Author:      d.Author,
		Duration:    duration,
		Thumbnails:  d.Thumbnail.Thumbnails,
		Description: d.ShortDescription,
		ViewCount:   d.ViewCount,
	}
}

// PlayerResponse is the typed shape of /youtubei/v1/player.
type PlayerResponse struct {
	Error             *APIError         `json:"error"`
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     *StreamingData    `json:"streamingData"`
	VideoDetails      *VideoDetails     `json:"videoDetails"`
}

// HasStreamingData reports whether any rendition list is present.
func (r *PlayerResponse) HasStreamingData() bool {
	return r.StreamingData != nil &&
		(len(r.StreamingData.AdaptiveFormats) > 0 || len(r.StreamingData.Formats) > 0)
}
