package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/assesshub/attempt-runner/internal/api"
	"github.com/assesshub/attempt-runner/internal/config"
	"github.com/assesshub/attempt-runner/internal/logger"
	"github.com/assesshub/attempt-runner/internal/model"
	"github.com/assesshub/attempt-runner/internal/session"
	"github.com/assesshub/attempt-runner/internal/snapshot"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	attemptID := flag.Int("attempt", 0, "attempt (user assessment) id to take")
	flag.Parse()
	if *attemptID <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: runner -attempt <id>")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── API Client + Auth ─────────────────────────────────────────────
	client := api.New(cfg.APIBaseURL, log)
	if cfg.APIToken != "" {
		client.SetToken(cfg.APIToken)
	} else if err := login(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("Login failed")
	}

	// ─── Snapshot Store ────────────────────────────────────────────────
	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}

	// ─── Session ───────────────────────────────────────────────────────
	opts := session.Options{AutosaveEvery: cfg.AutosaveInterval}
	if exp, err := client.TokenExpiry(); err == nil {
		opts.TokenExpiry = exp
	}

	sess := session.New(client, store, log, opts)

	// ─── Graceful Teardown ─────────────────────────────────────────────
	// The terminal analog of the page-unload hook: one last snapshot and
	// answer flush before the process dies.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Info().Str("signal", sig.String()).Msg("Interrupted, saving progress...")
		_ = sess.Close(context.Background())
		os.Exit(0)
	}()

	go printEvents(sess)

	if err := sess.Start(ctx, *attemptID); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, apiErr.Message())
		} else {
			fmt.Fprintln(os.Stderr, "Failed to load the assessment.")
		}
		os.Exit(1)
	}

	runPrompt(sess)

	_ = sess.Close(context.Background())
}

// login prompts for credentials, echoing the email but not the password.
func login(ctx context.Context, client *api.Client) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	_, err = client.Login(ctx, email, string(pwBytes))
	return err
}

func buildStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (snapshot.Store, error) {
	switch cfg.SnapshotBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info().Str("addr", opt.Addr).Msg("Redis snapshot store connected")
		return snapshot.NewRedisStore(rdb, cfg.SnapshotStale, log), nil
	default:
		return snapshot.NewFileStore(cfg.SnapshotDir, cfg.SnapshotStale, log), nil
	}
}

// printEvents relays session notifications to the terminal. Tick events
// are suppressed except on minute boundaries and the final ten seconds.
func printEvents(sess *session.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case session.EventTick:
			if ev.Remaining%60 == 0 || ev.Remaining <= 10 {
				fmt.Printf("\r[time left: %s]\n", session.FormatTime(ev.Remaining))
			}
		case session.EventWarning, session.EventSaveFailed:
			fmt.Printf("! %s\n", ev.Message)
		case session.EventSubmitted:
			fmt.Println(ev.Message)
			fmt.Println("Results will be available once evaluated.")
			os.Exit(0)
		}
	}
}

func runPrompt(sess *session.Session) {
	fmt.Println("Commands: answer text, :next, :prev, :goto N, :flag, :submit, :quit")
	renderQuestion(sess)

	scanner := bufio.NewScanner(os.Stdin)
	for sess.State() == session.StateActive {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == ":quit" || line == ":q":
			return
		case line == ":next" || line == ":n":
			_ = sess.Change(1)
			renderQuestion(sess)
		case line == ":prev" || line == ":p":
			_ = sess.Change(-1)
			renderQuestion(sess)
		case strings.HasPrefix(line, ":goto "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":goto ")))
			if err != nil || sess.GoTo(n-1) != nil {
				fmt.Println("No such question.")
				continue
			}
			renderQuestion(sess)
		case line == ":flag" || line == ":f":
			_ = sess.ToggleFlag()
			renderQuestion(sess)
		case line == ":submit":
			if confirmSubmit(sess, scanner) {
				if err := sess.Submit(context.Background()); err != nil {
					fmt.Println("Submission failed. Please try again.")
				}
			}
		case line == "":
			renderQuestion(sess)
		default:
			if err := sess.RecordAnswer(line); err != nil {
				fmt.Println("This question cannot be answered here.")
			}
		}
	}
}

func renderQuestion(sess *session.Session) {
	q, idx := sess.Current()
	total := len(sess.Questions())
	sum := sess.Summarize()

	marker := ""
	if sess.AnswerStateOf(q.ID) == session.AnswerFlagged {
		marker = " [flagged]"
	}

	fmt.Printf("\n── Question %d/%d%s ── %s ── answered %d, flagged %d ──\n",
		idx+1, total, marker, session.FormatTime(sess.Remaining()), sum.Answered, sum.Flagged)
	fmt.Println(q.Text)
	if q.Kind == model.KindChoice {
		for i, opt := range q.Options {
			fmt.Printf("  %s. %s\n", model.OptionLetter(i), opt)
		}
	}
	if a := sess.CurrentAnswer(); a != "" {
		fmt.Printf("Current answer: %s\n", a)
	}
}

func confirmSubmit(sess *session.Session, scanner *bufio.Scanner) bool {
	sum := sess.Summarize()
	fmt.Printf("Submit the assessment? Answered %d/%d", sum.Answered, sum.Total)
	if sum.Unanswered > 0 {
		fmt.Printf(", unanswered %d", sum.Unanswered)
	}
	fmt.Println(". You cannot return after submission.")
	fmt.Print("Type 'yes' to confirm: ")
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}
