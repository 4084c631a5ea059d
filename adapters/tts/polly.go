package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain/entities"
	"github.com/NguyenNhat4/Speak-english-with-AI/domain/repositories"
)

type pollyClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyConfig configures the Amazon Polly adapter
type PollyConfig struct {
	Region      string
	FemaleVoice string
	MaleVoice   string
	Engine      string
}

// PollyTTS implements TextToSpeech on Amazon Polly
type PollyTTS struct {
	mu     sync.Mutex
	client pollyClient
	cfg    PollyConfig
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*PollyTTS)(nil)

// NewPollyTTS creates a Polly adapter. The AWS client is created lazily from
// the default credential chain unless one is passed in.
func NewPollyTTS(cfg PollyConfig, client pollyClient, logger *zap.Logger) *PollyTTS {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
		logger.Info("Using default AWS region", zap.String("region", cfg.Region))
	}
	if strings.TrimSpace(cfg.FemaleVoice) == "" {
		cfg.FemaleVoice = "Joanna"
	}
	if strings.TrimSpace(cfg.MaleVoice) == "" {
		cfg.MaleVoice = "Matthew"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	return &PollyTTS{client: client, cfg: cfg, logger: logger}
}

// Synthesize implements repositories.TextToSpeech
func (p *PollyTTS) Synthesize(ctx context.Context, req repositories.SpeechRequest) (*repositories.SpeechStream, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, &repositories.SynthesisError{Provider: "polly", Err: err}
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	voice := p.cfg.FemaleVoice
	if req.Voice.Gender() == entities.GenderMale {
		voice = p.cfg.MaleVoice
	}

	text, textType := pollyText(req.Text, req.Speed)
	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         aws.String(text),
		TextType:     textType,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return nil, pollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, &repositories.SynthesisError{Provider: "polly", Message: "empty audio stream", Retryable: true}
	}

	contentType := "audio/mpeg"
	if ct := aws.ToString(output.ContentType); ct != "" {
		contentType = ct
	}
	return &repositories.SpeechStream{ReadCloser: output.AudioStream, ContentType: contentType}, nil
}

// pollyText wraps the text in SSML when a non-default speed is requested
func pollyText(text string, speed float64) (string, pollytypes.TextType) {
	if speed == 0 || speed == 1 {
		return text, pollytypes.TextTypeText
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<speak><prosody rate="%d%%">`, int(speed*100))
	xml.EscapeText(&buf, []byte(text))
	buf.WriteString(`</prosody></speak>`)
	return buf.String(), pollytypes.TextTypeSsml
}

func pollyError(err error) error {
	synthErr := &repositories.SynthesisError{Provider: "polly", Err: err}
	if errors.Is(err, context.Canceled) {
		return synthErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		synthErr.Retryable = true
		return synthErr
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		synthErr.Code = apiErr.ErrorCode()
		synthErr.Message = apiErr.ErrorMessage()
		switch apiErr.ErrorCode() {
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
			"MarksNotSupportedForFormatException", "InvalidSampleRateException":
		default:
			synthErr.Retryable = true
		}
		return synthErr
	}

	synthErr.Retryable = true
	return synthErr
}

func (p *PollyTTS) resolveClient(ctx context.Context) (pollyClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}
