// Command client is a small smoke-test client for the verification server.
// It can enroll a voiceprint, run a full multi-phrase verification from
// pre-recorded audio files, and show the local run history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/client/api"
	"github.com/dmitrijs2005/voicegate/internal/client/history"
)

func main() {
	server := flag.String("s", "http://127.0.0.1:8080", "server base URL")
	token := flag.String("t", os.Getenv("VOICEGATE_TOKEN"), "bearer token")
	difficulty := flag.String("d", "easy", "challenge difficulty")
	dbPath := flag.String("b", "voicegate-client.db", "local history database path")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	client := api.NewClient(*server, *token, 30*time.Second)

	var err error
	switch args[0] {
	case "enroll":
		err = runEnroll(ctx, client, args[1:])
	case "verify":
		err = runVerify(ctx, client, *dbPath, *difficulty, args[1:])
	case "history":
		err = runHistory(ctx, *dbPath)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  client [-s server] [-t token] enroll <embedding-file>
  client [-s server] [-t token] [-d difficulty] [-b db] verify <audio-file>...
  client [-b db] history`)
}

func runEnroll(ctx context.Context, client *api.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("enroll expects exactly one embedding file")
	}
	embedding, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := client.Enroll(ctx, embedding, "default"); err != nil {
		return err
	}
	fmt.Println("voiceprint enrolled")
	return nil
}

func runVerify(ctx context.Context, client *api.Client, dbPath, difficulty string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("verify expects at least one audio file")
	}

	session, err := client.StartVerification(ctx, difficulty, len(files))
	if err != nil {
		return err
	}

	fmt.Printf("session %s opened, %d phrases\n", session.VerificationID, session.PhraseCount)
	for _, ch := range session.Challenges {
		fmt.Printf("  %d: %q\n", ch.PhraseNumber, ch.Phrase)
	}

	var last *api.PhraseOutcome
	for i, file := range files {
		audio, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		ch := session.Challenges[i]
		outcome, err := client.SubmitPhrase(ctx, session.VerificationID, ch.ID, ch.PhraseNumber, audio)
		if err != nil {
			return err
		}
		fmt.Printf("phrase %d: score %.3f (%s)\n", outcome.PhraseNumber, outcome.FinalScore, outcome.Reason)

		last = outcome
		if outcome.IsComplete {
			break
		}
	}

	if last == nil || !last.IsComplete {
		return fmt.Errorf("session did not complete")
	}

	if last.IsVerified {
		fmt.Printf("VERIFIED (average %.3f)\n", last.AverageScore)
	} else {
		fmt.Printf("REJECTED: %s (average %.3f)\n", last.Reason, last.AverageScore)
	}

	db, err := history.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return history.NewSQLiteRepository(db).Add(ctx, &history.Record{
		SessionID:    session.VerificationID,
		Difficulty:   difficulty,
		PhraseCount:  session.PhraseCount,
		Verified:     last.IsVerified,
		AverageScore: last.AverageScore,
		Reason:       last.Reason,
	})
}

func runHistory(ctx context.Context, dbPath string) error {
	db, err := history.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := history.NewSQLiteRepository(db).List(ctx, 20)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, rec := range records {
		status := "rejected"
		if rec.Verified {
			status = "verified"
		}
		fmt.Printf("%s  %s  %s  %d phrases  avg %.3f  %s\n",
			rec.CreatedAt.Format(time.RFC3339), rec.SessionID, status,
			rec.PhraseCount, rec.AverageScore, rec.Reason)
	}
	return nil
}
