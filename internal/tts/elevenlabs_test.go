package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewElevenLabsClient_DefaultValues(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{
		APIKey:     "test-key",
		Stability:  -1, // Sentinel for "use default"
		Similarity: -1,
	})

	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
	if client.modelID != "eleven_flash_v2_5" {
		t.Errorf("modelID = %q, want %q", client.modelID, "eleven_flash_v2_5")
	}
	if client.outputFormat != "mp3_44100_128" {
		t.Errorf("outputFormat = %q, want %q", client.outputFormat, "mp3_44100_128")
	}
	if client.stability != 0.5 {
		t.Errorf("stability = %f, want %f", client.stability, 0.5)
	}
	if client.similarity != 0.75 {
		t.Errorf("similarity = %f, want %f", client.similarity, 0.75)
	}
}

func TestNewElevenLabsClient_ZeroValuesAreValid(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{
		APIKey:     "test-key",
		BaseURL:    "http://example.test/v1/",
		Stability:  0,
		Similarity: 0,
	})

	if client.stability != 0 || client.similarity != 0 {
		t.Errorf("stability/similarity = %f/%f, want 0/0", client.stability, client.similarity)
	}
	if client.baseURL != "http://example.test/v1" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", client.baseURL)
	}
}

func TestElevenLabsClient_Synthesize(t *testing.T) {
	var gotReq ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/text-to-speech/voice-123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "mp3_44100_128" {
			t.Errorf("output_format = %q", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "secret" {
			t.Errorf("xi-api-key = %q, want %q", got, "secret")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3"))
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{
		APIKey:     "secret",
		BaseURL:    srv.URL + "/v1",
		Stability:  -1,
		Similarity: -1,
	})

	audio, err := client.Synthesize(context.Background(), "hello world", "voice-123")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	defer audio.Close()

	data, _ := io.ReadAll(audio)
	if string(data) != "ID3-fake-mp3" {
		t.Errorf("audio = %q", data)
	}
	if gotReq.Text != "hello world" {
		t.Errorf("request text = %q", gotReq.Text)
	}
	if gotReq.ModelID != DefaultModelID {
		t.Errorf("request model = %q", gotReq.ModelID)
	}
	if gotReq.VoiceSettings.Stability != 0.5 || gotReq.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("voice settings = %+v", gotReq.VoiceSettings)
	}
}

func TestElevenLabsClient_SynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{BaseURL: srv.URL})

	_, err := client.Synthesize(context.Background(), "hi", "v")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestElevenLabsClient_SynthesizeValidation(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{BaseURL: "http://127.0.0.1:0"})

	if _, err := client.Synthesize(context.Background(), "   ", "v"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text error = %v, want ErrEmptyText", err)
	}
	if _, err := client.Synthesize(context.Background(), "hi", ""); err == nil {
		t.Error("expected error for missing voice id")
	}
}

func TestElevenLabsClient_ListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("path = %s, want /voices", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"voices":[
			{"voice_id":"21m00Tcm4TlvDq8ikWAM","name":"Rachel","category":"premade"},
			{"voice_id":"AZnzlk1XvdvUeBnXmlld","name":"Domi","category":"premade"}
		]}`))
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{APIKey: "k", BaseURL: srv.URL})

	voices, err := client.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices() error = %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].Name != "Rachel" || voices[0].ID != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("voices[0] = %+v", voices[0])
	}
}

func TestElevenLabsClient_ListVoicesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewElevenLabsClient(ElevenLabsConfig{BaseURL: srv.URL})
	if _, err := client.ListVoices(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}
