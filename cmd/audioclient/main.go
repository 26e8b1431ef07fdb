// Command audioclient streams a WAV file to the transcription server in
// real time and prints the transcripts it receives.
//
// Mono files are sent as a single speaker. Stereo files can be split so the
// left channel is the user and the right channel is the interviewer.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/models"
)

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16 kHz 16-bit)")
	serverURL := flag.String("server", "ws://127.0.0.1:8765/", "WebSocket server URL")
	speaker := flag.String("speaker", "user", "Speaker for mono files (user or interviewer)")
	split := flag.Bool("split", true, "Send stereo channels as user (left) and interviewer (right)")
	chunk := flag.Duration("chunk", 100*time.Millisecond, "Audio per message")
	linger := flag.Duration("linger", 5*time.Second, "Time to wait for finals after the file ends")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	sp, err := models.ParseSpeaker(*speaker)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid speaker")
	}

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio file")
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		log.Fatal().Str("file", *audioFile).Msg("Not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode WAV")
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	log.Info().
		Int("channels", channels).
		Int("sampleRate", rate).
		Int("bitDepth", int(dec.BitDepth)).
		Msg("WAV file loaded")

	if dec.BitDepth != 16 {
		log.Fatal().Msg("Only 16-bit PCM is supported")
	}
	if rate != 16000 {
		log.Warn().Int("sampleRate", rate).Msg("Sample rate is not 16000 Hz; the server does not resample")
	}

	tracks := map[models.Speaker][]byte{}
	if channels == 2 && *split {
		tracks[models.SpeakerUser] = channelPCM(buf, 0)
		tracks[models.SpeakerInterviewer] = channelPCM(buf, 1)
	} else {
		tracks[sp] = channelPCM(buf, 0)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverURL).Msg("Failed to connect")
	}
	defer conn.Close()
	log.Info().Str("server", *serverURL).Msg("Connected")

	go printTranscripts(conn)

	chunkBytes := int(chunk.Seconds()*float64(rate)) * 2
	start := time.Now()
	sent := 0
	for offset := 0; ; offset += chunkBytes {
		more := false
		for _, s := range models.Speakers {
			pcm, ok := tracks[s]
			if !ok || offset >= len(pcm) {
				continue
			}
			more = true
			end := min(offset+chunkBytes, len(pcm))
			msg, _ := json.Marshal(models.AudioMessage{Speaker: s.String(), Audio: hex.EncodeToString(pcm[offset:end])})
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Fatal().Err(err).Msg("Failed to send audio")
			}
			sent++
		}
		if !more {
			break
		}
		// Simulate real-time streaming
		time.Sleep(*chunk)
	}

	log.Info().Int("messages", sent).Dur("elapsed", time.Since(start)).Msg("Finished streaming, waiting for finals")
	time.Sleep(*linger)

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// channelPCM extracts one channel as PCM16 little-endian bytes.
func channelPCM(buf *audio.IntBuffer, channel int) []byte {
	n := buf.Format.NumChannels
	out := make([]byte, 0, len(buf.Data)/n*2)
	for i := channel; i < len(buf.Data); i += n {
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(buf.Data[i])))
	}
	return out
}

func printTranscripts(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev models.TranscriptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn().Err(err).Msg("Unexpected message")
			continue
		}
		kind := "draft"
		if ev.Final {
			kind = "FINAL"
		}
		log.Info().
			Str("kind", kind).
			Str("speaker", ev.Speaker.String()).
			Float64("confidence", ev.Confidence).
			Msg(ev.Text)
	}
}
