package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

// recognizeFunc is the single Cloud Speech call the adapter needs
type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	recognize recognizeFunc
	closer    func() error
	logger    *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Cloud Speech client using application
// default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		closer: client.Close,
		logger: logger,
	}, nil
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// TranscribeAudio converts audio data to text using synchronous recognition
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return "", err
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               config.Language,
		EnableAutomaticPunctuation: true,
	}
	if config.SampleRate > 0 && !headerCarriesRate(encoding) {
		recognitionConfig.SampleRateHertz = int32(config.SampleRate)
	}

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alternatives := result.GetAlternatives(); len(alternatives) > 0 {
			// Take the best alternative
			parts = append(parts, strings.TrimSpace(alternatives[0].GetTranscript()))
		}
	}

	transcript := strings.TrimSpace(strings.Join(parts, " "))
	g.logger.Debug("Speech recognized",
		zap.Int("audioBytes", len(audioData)),
		zap.Int("results", len(parts)))
	return transcript, nil
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "", "AUTO":
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, nil
	case "LINEAR16", "PCM":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MP3":
		return speechpb.RecognitionConfig_MP3, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

// headerCarriesRate reports whether the recognizer reads the sample rate from
// the audio itself; sending a different one is rejected
func headerCarriesRate(encoding speechpb.RecognitionConfig_AudioEncoding) bool {
	switch encoding {
	case speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
		speechpb.RecognitionConfig_FLAC,
		speechpb.RecognitionConfig_MP3,
		speechpb.RecognitionConfig_WEBM_OPUS:
		return true
	}
	return false
}
