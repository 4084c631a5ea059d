package repositories

import (
	"context"
	"path/filepath"
	"strings"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts a complete audio file to text. An empty
	// string without error means no speech was recognised.
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SupportedAudioExtensions lists the upload formats the recognizer can
// decode without transcoding
var SupportedAudioExtensions = []string{".mp3", ".wav", ".ogg", ".flac", ".webm"}

// EncodingForFile guesses the recognition encoding from a file name. WAV
// headers are detected by the recognizer ("AUTO").
func EncodingForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "MP3"
	case ".flac":
		return "FLAC"
	case ".ogg":
		return "OGG_OPUS"
	case ".webm":
		return "WEBM_OPUS"
	default:
		return "AUTO"
	}
}

// ContentTypeForFile returns the media type served for a stored upload
func ContentTypeForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}
