// Command speakclient walks through one practice turn against a running
// server: it creates a conversation, uploads an utterance, submits the turn,
// waits for the feedback push and saves the spoken reply.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/NguyenNhat4/Speak-english-with-AI/domain"
	"github.com/NguyenNhat4/Speak-english-with-AI/internal/auth"
)

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func main() {
	_ = godotenv.Load()

	baseURL := envOr("SERVER_URL", "http://localhost:8080")
	userID := envOr("USER_ID", "demo-user")
	audioPath := envOr("AUDIO_FILE", filepath.Join(".", "sample_audio.wav"))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set to sign a user token")
	}
	token, err := auth.GenerateUserToken([]byte(secret), userID, time.Hour)
	if err != nil {
		log.Fatal("Failed to generate token:", err)
	}

	c := &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 2 * time.Minute}}

	events, closeWS, err := c.listen()
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer closeWS()

	// Step 1: conversation
	var created domain.CreateConversationResponse
	if err := c.postJSON("/api/v1/conversations", domain.CreateConversationRequest{
		UserRole:  "customer",
		AIRole:    "waiter",
		Situation: "ordering food",
	}, &created); err != nil {
		log.Fatal("Failed to create conversation:", err)
	}
	convID := created.Conversation.ID.Hex()
	log.Printf("🚀 Conversation %s (%s) as %s with %s", convID, created.Conversation.VoiceType,
		created.Conversation.UserRole, created.Conversation.AIRole)
	log.Printf("🤖 %s", created.InitialMessage.Content)

	// Step 2: utterance
	transcription, err := c.upload(audioPath)
	if err != nil {
		log.Fatal("Failed to upload audio:", err)
	}
	if !transcription.Success || transcription.AudioID == nil {
		log.Fatalf("Transcription failed: %s", transcription.Transcription)
	}
	log.Printf("📝 Transcribed: %q", transcription.Transcription)
	if transcription.Warning != "" {
		log.Printf("⚠️  %s", transcription.Warning)
	}

	// Step 3: turn
	var turn domain.TurnResponse
	path := fmt.Sprintf("/api/v1/conversations/%s/message?audio_id=%s", convID, url.QueryEscape(*transcription.AudioID))
	if err := c.postJSON(path, nil, &turn); err != nil {
		log.Fatal("Failed to submit turn:", err)
	}
	log.Printf("🤖 %s", turn.AIMessage.Content)

	// Step 4: feedback
	select {
	case event := <-events:
		log.Printf("✅ Feedback ready for message %s", event.MessageID)
	case <-time.After(90 * time.Second):
		log.Println("Timed out waiting for feedback push, polling instead")
	}
	var feedback domain.FeedbackResponse
	if err := c.getJSON("/api/v1/messages/"+turn.UserMessage.ID.Hex()+"/feedback", &feedback); err != nil {
		log.Fatal("Failed to get feedback:", err)
	}
	if payload, ok := feedback.UserFeedback.(map[string]interface{}); ok {
		log.Printf("📊 Feedback:\n%v", payload["user_feedback"])
	} else {
		log.Printf("📊 %v", feedback.UserFeedback)
	}

	// Step 5: speech
	out, err := c.saveSpeech(turn.AIMessage.ID.Hex())
	if err != nil {
		log.Fatal("Failed to fetch speech:", err)
	}
	log.Printf("🎵 Saved reply audio to %s", out)
}

// listen connects to the push channel and forwards feedback events
func (c *client) listen() (<-chan domain.FeedbackReadyEvent, func(), error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"

	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("connected to %s", u.String())

	events := make(chan domain.FeedbackReadyEvent, 4)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var event domain.FeedbackReadyEvent
			if err := json.Unmarshal(message, &event); err != nil {
				log.Println("unmarshal error:", err)
				continue
			}
			if event.Type == domain.EventTypeFeedbackReady {
				events <- event
			} else {
				log.Printf("Received message type: %s", event.Type)
			}
		}
	}()

	closeFn := func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	return events, closeFn, nil
}

func (c *client) upload(path string) (*domain.TranscriptionResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log.Printf("📁 Read audio file: %s (%d bytes)", path, len(data))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio_file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(http.MethodPost, "/api/v1/audio2text", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp domain.TranscriptionResponse
	return &resp, c.do(req, &resp)
}

func (c *client) saveSpeech(messageID string) (string, error) {
	req, err := c.newRequest(http.MethodGet, "/api/v1/messages/"+messageID+"/speech", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("speech failed with status %d: %s", resp.StatusCode, body)
	}

	audioDir := "audio_responses"
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(audioDir, messageID+".mp3")
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", err
	}
	log.Printf("🎵 Received %d bytes of audio", n)
	return out, nil
}

func (c *client) postJSON(path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *client) getJSON(path string, out interface{}) error {
	req, err := c.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s failed with status %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
