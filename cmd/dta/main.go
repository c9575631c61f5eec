// Command dta is the terminal client for the Digital Therapy Assistant
// backend. It authenticates against the REST API, then runs either a live
// CBT conversation or a burnout assessment over the session socket.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/adapters/localstore"
	"github.com/maremivazquez1/dta-client/adapters/media"
	"github.com/maremivazquez1/dta-client/domain/entities"
	"github.com/maremivazquez1/dta-client/domain/repositories"
	"github.com/maremivazquez1/dta-client/internal/auth"
	"github.com/maremivazquez1/dta-client/internal/capture"
	"github.com/maremivazquez1/dta-client/internal/config"
	"github.com/maremivazquez1/dta-client/internal/vad"
	"github.com/maremivazquez1/dta-client/internal/websocket"
	"github.com/maremivazquez1/dta-client/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "login":
		err = runAuth(cfg, logger, os.Args[2:], false)
	case "register":
		err = runAuth(cfg, logger, os.Args[2:], true)
	case "logout":
		err = runLogout(cfg, logger)
	case "cbt":
		err = runCBT(cfg, logger)
	case "burnout":
		err = runBurnout(cfg, logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: dta <command>

commands:
  login     authenticate and store credentials locally
  register  create an account and log in
  logout    discard stored credentials
  cbt       start a live therapy conversation
  burnout   run the burnout assessment`)
}

func openStore(cfg config.Config, logger *zap.Logger) (*localstore.Store, error) {
	return localstore.Open(cfg.DataDir, logger)
}

func runAuth(cfg config.Config, logger *zap.Logger, args []string, register bool) error {
	name := "login"
	if register {
		name = "register"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	_ = fs.Parse(args)
	if *email == "" || *password == "" {
		return fmt.Errorf("%s requires -email and -password", name)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := auth.NewClient(cfg.ServerURL, store, logger)
	if register {
		err = client.Register(ctx, *email, *password)
	} else {
		err = client.Login(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Println("Logged in.")
	return nil
}

func runLogout(cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := auth.NewClient(cfg.ServerURL, store, logger).Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

// newMediaSource picks the configured capture backend: a PCM file replay
// when DTA_AUDIO_FILE is set, live ffmpeg capture otherwise.
func newMediaSource(cfg config.Config, logger *zap.Logger) repositories.MediaSource {
	if cfg.AudioFile != "" {
		return media.NewFileSource(cfg.AudioFile, cfg.SampleRate, 1, true, logger)
	}
	return media.NewFFmpegSource(media.FFmpegConfig{
		Command:     cfg.FFmpegPath,
		AudioFormat: cfg.AudioFormat,
		AudioDevice: cfg.AudioDevice,
		SampleRate:  cfg.SampleRate,
		VideoFormat: cfg.VideoFormat,
		VideoDevice: cfg.VideoDevice,
	}, logger)
}

// credentials loads a usable token and user id, or tells the user to log in.
func credentials(cfg config.Config, store *localstore.Store, logger *zap.Logger) (token, userID string, err error) {
	client := auth.NewClient(cfg.ServerURL, store, logger)
	token, err = client.Token()
	if err != nil {
		return "", "", fmt.Errorf("no valid login; run `dta login` first: %w", err)
	}
	return token, client.UserID(), nil
}

func runCBT(cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	token, userID, err := credentials(cfg, store, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := websocket.Dial(ctx, cfg.CBTSocketURL, token, logger)
	cancel()
	if err != nil {
		return err
	}

	modalities := []entities.Modality{entities.ModalityAudio}
	if cfg.Video {
		modalities = append(modalities, entities.ModalityVideo)
	}

	detector := vad.NewEnergy(vad.Config{
		ThresholdDB: cfg.VADThresholdDB,
		HangTime:    cfg.VADHangTime,
	}, logger)
	player := media.NewExecPlayer("", logger)
	log := usecase.NewConversationLog(logger)
	classifier := websocket.NewClassifier(logger)

	// The hook closes over the session variable assigned just below; the
	// pipeline cannot fire it before Start.
	var session *usecase.CBTSession
	pipeline := capture.NewPipeline(
		capture.Config{
			SessionID:  uuid.NewString(),
			UserID:     userID,
			Modalities: modalities,
		},
		newMediaSource(cfg, logger),
		detector,
		player,
		conn,
		func(m entities.Modality) repositories.Recorder {
			return media.NewChunkRecorder(m, "")
		},
		capture.Hooks{OnUtteranceSent: func(u entities.Utterance) { session.OnUtteranceSent(u) }},
		logger,
	)
	session = usecase.NewCBTSession(conn, classifier, log, pipeline, player, logger)

	if err := session.Start(context.Background()); err != nil {
		_ = conn.Close()
		return err
	}
	defer session.Close()

	fmt.Println("Session started. Speak into the microphone; Ctrl-C to end.")
	go renderLog(log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	fmt.Println("\nEnding session...")
	return nil
}

// renderLog prints conversation entries as they are accumulated. Pending
// placeholders are held back until their transcription resolves them.
func renderLog(log *usecase.ConversationLog) {
	printed := make(map[int]bool)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		messages := log.Messages()
		for i, msg := range messages {
			if printed[i] || msg.Pending {
				continue
			}
			printed[i] = true
			switch msg.Role {
			case entities.MessageRoleUser:
				fmt.Printf("you: %s\n", msg.Text)
			case entities.MessageRoleAssistant:
				fmt.Printf("assistant: %s\n", msg.Text)
			case entities.MessageRoleSystem:
				if msg.Text != "" {
					fmt.Printf("-- %s\n", msg.Text)
				}
			}
		}
	}
}

func runBurnout(cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	token, userID, err := credentials(cfg, store, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := websocket.Dial(ctx, cfg.BurnoutSocketURL, token, logger)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	log := usecase.NewConversationLog(logger)
	classifier := websocket.NewClassifier(logger)
	assessment := usecase.NewBurnoutAssessment(conn, classifier, log, userID, logger)
	assessment.PersistSessionID(store)
	assessment.OnResult(func(res entities.AssessmentResult) {
		fmt.Printf("\nAssessment complete. Score: %.0f\n%s\n", res.Score, res.Summary)
	})

	if err := assessment.Start(); err != nil {
		return err
	}

	select {
	case <-assessment.QuestionsReady():
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timed out waiting for questions")
	}

	// Multimodal questions are answered with a recorded utterance, so the
	// batch decides whether a capture pipeline is needed at all.
	multimodal := false
	for _, q := range assessment.Questions() {
		if q.Multimodal {
			multimodal = true
		}
	}
	if multimodal {
		detector := vad.NewEnergy(vad.Config{
			ThresholdDB: cfg.VADThresholdDB,
			HangTime:    cfg.VADHangTime,
		}, logger)
		pipeline := capture.NewPipeline(
			capture.Config{
				SessionID:  assessment.SessionID(),
				UserID:     userID,
				Modalities: []entities.Modality{entities.ModalityAudio},
			},
			newMediaSource(cfg, logger),
			detector,
			nil,
			conn,
			func(m entities.Modality) repositories.Recorder {
				return media.NewChunkRecorder(m, "")
			},
			capture.Hooks{OnUtteranceSent: assessment.OnUtteranceSent},
			logger,
		)
		if err := pipeline.Start(context.Background()); err != nil {
			return err
		}
		defer pipeline.Stop()
		assessment.AttachCapture(pipeline)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		q, ok := assessment.CurrentQuestion()
		if !ok {
			break
		}

		if q.Multimodal {
			fmt.Printf("\n[%s] %s\nSpeak your answer; recording stops after a pause.\n", q.Domain, q.Question)
			recCtx, recCancel := context.WithTimeout(context.Background(), 2*time.Minute)
			err := assessment.AnswerWithRecording(recCtx, q.QuestionID)
			recCancel()
			if err != nil {
				return err
			}
		} else {
			fmt.Printf("\n[%s] %s\n> ", q.Domain, q.Question)
			if !scanner.Scan() {
				return scanner.Err()
			}
			answer := strings.TrimSpace(scanner.Text())
			if answer == "" {
				fmt.Println("An answer is required.")
				continue
			}
			if err := assessment.Answer(q.QuestionID, answer); err != nil {
				return err
			}
		}
		if err := assessment.Next(); err != nil {
			return err
		}
	}

	select {
	case <-assessment.Done():
	case <-time.After(60 * time.Second):
		return fmt.Errorf("timed out waiting for the assessment result")
	}
	return nil
}
