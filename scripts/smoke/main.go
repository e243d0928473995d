package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/apiclient"
	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/session"
	"github.com/noah-isme/studio-api/pkg/config"
	"github.com/noah-isme/studio-api/pkg/logger"
)

type check struct {
	Name     string
	Count    int
	Duration time.Duration
	Error    error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		baseURL  string
		email    string
		password string
		timeout  time.Duration
	)
	flag.StringVar(&baseURL, "base", firstNonEmpty(cfg.Client.BaseURL, "http://localhost:8080/api/v1"), "API base URL including the prefix")
	flag.StringVar(&email, "email", os.Getenv("SMOKE_EMAIL"), "account email")
	flag.StringVar(&password, "password", os.Getenv("SMOKE_PASSWORD"), "account password")
	flag.DurationVar(&timeout, "timeout", cfg.Client.Timeout, "HTTP client timeout")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("email and password are required")
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	client := apiclient.New(config.ClientConfig{BaseURL: baseURL, Timeout: timeout}, logr)
	sess := session.New(client, client, logr)
	ctx := context.Background()

	start := time.Now()
	ws, err := sess.LogIn(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		logr.Error("login failed", zap.Error(err))
		os.Exit(1)
	}
	defer sess.LogOut(ctx)
	logr.Info("signed in", zap.String("role", string(sess.Status().User.Role)), zap.Duration("latency", time.Since(start)))

	if ws == nil {
		fmt.Println("account has no profile yet; complete it before running the smoke check")
		sess.LogOut(ctx)
		os.Exit(1)
	}

	checks := run(ctx, ws)
	printReport(checks)

	failed := 0
	for _, c := range checks {
		if c.Error != nil {
			failed++
		}
	}
	fmt.Printf("Failed checks: %d of %d\n", failed, len(checks))
	if failed > 0 {
		sess.LogOut(ctx)
		os.Exit(1)
	}
}

func run(ctx context.Context, ws session.Workspace) []check {
	switch w := ws.(type) {
	case *session.TeacherWorkspace:
		return []check{
			timed("lessons", func() (int, error) { err := w.Lessons.Refresh(ctx); return len(w.Lessons.Items()), err }),
			timed("technics", func() (int, error) { err := w.Technics.Refresh(ctx); return len(w.Technics.Items()), err }),
			timed("roster", func() (int, error) { err := w.Roster.Refresh(ctx); return len(w.Roster.Students()), err }),
			timed("directory", func() (int, error) { snap, err := w.Directory(ctx); return snap.Len(), err }),
		}
	case *session.StudentWorkspace:
		return []check{
			timed("assignments", func() (int, error) { err := w.Assignments.Refresh(ctx); return len(w.Assignments.Items()), err }),
			timed("library:lesson", func() (int, error) { err := w.Lessons.Refresh(ctx); return len(w.Lessons.Items()), err }),
			timed("library:technic", func() (int, error) { err := w.Technics.Refresh(ctx); return len(w.Technics.Items()), err }),
		}
	}
	return nil
}

func timed(name string, fn func() (int, error)) check {
	start := time.Now()
	count, err := fn()
	return check{Name: name, Count: count, Duration: time.Since(start), Error: err}
}

func printReport(checks []check) {
	fmt.Println("Smoke check report")
	fmt.Println(strings.Repeat("=", 48))
	for _, c := range checks {
		status := "OK"
		if c.Error != nil {
			status = "FAIL"
		}
		fmt.Printf("%-18s %-5s items=%-5d %s\n", c.Name, status, c.Count, c.Duration.Round(time.Millisecond))
		if c.Error != nil {
			fmt.Printf("  error: %v\n", c.Error)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
