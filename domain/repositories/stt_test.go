package repositories

import "testing"

func TestEncodingForFile(t *testing.T) {
	tests := map[string]string{
		"a.mp3":  "MP3",
		"a.ogg":  "OGG_OPUS",
		"a.WEBM": "WEBM_OPUS",
		"a.flac": "FLAC",
		"a.wav":  "AUTO",
		"noext":  "AUTO",
	}
	for name, want := range tests {
		if got := EncodingForFile(name); got != want {
			t.Errorf("EncodingForFile(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSupportedAudioExtensions_HaveKnownEncoding(t *testing.T) {
	for _, ext := range SupportedAudioExtensions {
		if ext == ".wav" {
			continue
		}
		if got := EncodingForFile("clip" + ext); got == "AUTO" {
			t.Errorf("Expected an explicit encoding for %s, got %s", ext, got)
		}
	}
}

func TestContentTypeForFile(t *testing.T) {
	for _, ext := range SupportedAudioExtensions {
		if got := ContentTypeForFile("clip" + ext); got == "application/octet-stream" {
			t.Errorf("Expected an audio media type for %s, got %s", ext, got)
		}
	}
	if got := ContentTypeForFile("clip.MP3"); got != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", got)
	}
	if got := ContentTypeForFile("notes.txt"); got != "application/octet-stream" {
		t.Errorf("Expected application/octet-stream, got %s", got)
	}
}
