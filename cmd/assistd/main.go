package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rgehrsitz/assist/internal/config"
	"rgehrsitz/assist/pkg/assist"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfgPath := flag.String("config", "assist.yaml", "path to YAML config")
	logPath := flag.String("actions", "actions.log", "action log, one entry per line")
	scenePath := flag.String("scene", "scene.yaml", "YAML scene description")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	redraw := flag.Duration("redraw", time.Second, "how often the console presenter redraws")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	if *verbose {
		cfg.Verbose = true
	}

	host := newFileHost(*logPath, *scenePath, cfg.Operators, log.Logger)
	a, err := assist.New(cfg, host, assist.WithLogger(log.Logger))
	if err != nil {
		exitErr(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	p := &presenter{assistant: a, out: os.Stdout, answers: readAnswers(os.Stdin)}

	ticker := time.NewTicker(*redraw)
	defer ticker.Stop()
	p.redraw(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			if err := a.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("Shutdown incomplete")
			}
			return
		case <-ticker.C:
			p.redraw(ctx)
		case <-hup:
			log.Info().Msg("Received SIGHUP, reloading rules")
			a.Reload()
		}
	}
}

// presenter is the console stand-in for a popup UI.
type presenter struct {
	assistant *assist.Assistant
	out       io.Writer
	answers   <-chan string
}

func (p *presenter) redraw(ctx context.Context) {
	if _, err := p.assistant.Start(ctx); err != nil {
		return
	}
	r, ok := p.assistant.TryShow(ctx)
	if !ok {
		return
	}
	p.show(ctx, r)
}

func (p *presenter) show(ctx context.Context, r *assist.Rule) {
	fmt.Fprintf(p.out, "\n%s\n", r.Message)
	fmt.Fprintf(p.out, "[%s] > ", strings.Join(r.Buttons, "/"))

	var answer string
	select {
	case <-ctx.Done():
		return
	case a, ok := <-p.answers:
		if !ok {
			return
		}
		answer = a
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch {
	case answer == "help":
		p.show(ctx, p.assistant.Fallback())
		return
	case answer == "" || answer == "cancel":
		return
	}
	dismiss := answer == "dismiss" && r.Dismissable()
	report := p.assistant.Respond(ctx, r, dismiss)
	for _, skipped := range report.Skipped {
		fmt.Fprintf(p.out, "could not run %q\n", skipped)
	}
}

func readAnswers(in io.Reader) <-chan string {
	answers := make(chan string)
	go func() {
		defer close(answers)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			answers <- sc.Text()
		}
	}()
	return answers
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
