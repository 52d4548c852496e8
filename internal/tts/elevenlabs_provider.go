package tts

import (
	"context"
	"fmt"

	"github.com/slidecaster/slidecaster/internal/script"
)

// ElevenLabsProvider adapts ElevenLabsClient to the Provider interface so
// it can be selected through NewProvider/ProviderSet like the other TTS
// backends.
type ElevenLabsProvider struct {
	client *ElevenLabsClient
	voice3 string
}

func NewElevenLabsProvider(voice1, voice2, voice3 string, cfg ProviderConfig) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		client: NewElevenLabsClient(voice1, voice2),
		voice3: voice3,
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) DefaultVoices() VoiceMap {
	voice3 := p.voice3
	if voice3 == "" {
		voice3 = DefaultVoiceSam
	}
	return VoiceMap{
		Host1: Voice{ID: p.client.VoiceAlexID(), Name: "Alex", Provider: "elevenlabs"},
		Host2: Voice{ID: p.client.VoiceSamID(), Name: "Sam", Provider: "elevenlabs"},
		Host3: Voice{ID: voice3, Name: "Jordan", Provider: "elevenlabs"},
	}
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	data, err := p.client.synthesizeWithRetry(ctx, script.Segment{Text: text}, voice.ID)
	if err != nil {
		return AudioResult{}, fmt.Errorf("elevenlabs synthesize: %w", err)
	}
	return AudioResult{Data: data, Format: FormatMP3}, nil
}

func (p *ElevenLabsProvider) Close() error { return nil }

func elevenLabsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: DefaultVoiceAlex, Name: "George", Gender: "male", Description: "warm, conversational", DefaultFor: "Voice 1"},
		{ID: DefaultVoiceSam, Name: "Sarah", Gender: "female", Description: "bright, engaged", DefaultFor: "Voice 2"},
	}
}
