// Command testclient drives the server with synthetic audio: the two
// speakers take turns with short voiced bursts, and one malformed message
// is sent to check the connection survives it.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"math"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/service/stt"
)

const sampleRate = 16000

func main() {
	serverURL := flag.String("server", "ws://127.0.0.1:8765/", "WebSocket server URL")
	turns := flag.Int("turns", 4, "Number of speaker turns")
	turnLen := flag.Duration("turn", 3*time.Second, "Length of each turn")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()
	log.Info().Str("server", *serverURL).Msg("Connected to server")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev models.TranscriptEvent
			if json.Unmarshal(data, &ev) == nil {
				log.Info().
					Str("speaker", ev.Speaker.String()).
					Bool("final", ev.Final).
					Float64("confidence", ev.Confidence).
					Msg(ev.Text)
			}
		}
	}()

	conn.WriteMessage(websocket.TextMessage, []byte(`{"speaker":"narrator","audio":"00"}`))

	chunk := 100 * time.Millisecond
	perTurn := int(*turnLen / chunk)
	for turn := 0; turn < *turns; turn++ {
		active := models.Speakers[turn%len(models.Speakers)]
		log.Info().Int("turn", turn+1).Str("speaker", active.String()).Msg("Speaking")

		for i := 0; i < perTurn; i++ {
			for _, sp := range models.Speakers {
				amp := 0.0
				if sp == active {
					amp = 0.3
				}
				pcm := stt.Float32ToPCM16(tone(chunk, 180+float64(turn)*40, amp))
				msg, _ := json.Marshal(models.AudioMessage{Speaker: sp.String(), Audio: hex.EncodeToString(pcm)})
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Fatal().Err(err).Msg("Failed to send audio")
				}
			}
			time.Sleep(chunk)
		}
	}

	log.Info().Msg("Finished sending, waiting for finals")
	time.Sleep(3 * time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// tone returns d of a sine at freq Hz scaled by amp. amp 0 is silence.
func tone(d time.Duration, freq, amp float64) []float32 {
	n := int(d.Seconds() * sampleRate)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}
