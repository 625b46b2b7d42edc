// Command testclient runs a short scripted interview against a local service
// instance over WebSocket. Useful with STT_PROVIDER=mock and TTS_PROVIDER=mock.
package main

import (
	"encoding/base64"
	"flag"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"ai-interview-service/internal/models"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080", "service base URL")
	candidate := flag.String("candidate", "cand-1", "candidate identifier")
	clips := flag.Int("clips", 8, "number of audio clips to send")
	flag.Parse()

	url := *addr + "/v1/interviews/" + *candidate + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg models.ServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("connection closed: %v", err)
				return
			}
			switch msg.Type {
			case "status":
				log.Printf("status: %s (%s)", msg.Status, msg.Message)
			case "error":
				log.Printf("error: %s", msg.Message)
			case "audio":
				if msg.Metadata != nil {
					log.Printf("[%s] turn %d: %s (inconsistencies: %d)",
						msg.Metadata.Stage, msg.Metadata.Turn, msg.Metadata.Text, msg.Metadata.InconsistencyCount)
				}
			}
		}
	}()

	// Fake clips; the mock STT adapter turns each into a canned Arabic answer.
	clip := base64.StdEncoding.EncodeToString([]byte("audio-clip"))
	for i := 0; i < *clips; i++ {
		if err := conn.WriteJSON(models.ClientMessage{Type: "audio", Data: clip}); err != nil {
			log.Fatalf("failed to send clip: %v", err)
		}
		time.Sleep(300 * time.Millisecond)
	}

	if err := conn.WriteJSON(models.ClientMessage{Type: "end"}); err != nil {
		log.Fatalf("failed to send end: %v", err)
	}
	log.Println("Sent end, waiting for close")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("timed out waiting for close")
	}
}
