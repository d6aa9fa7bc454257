// locallm TUI - a local LLM chat client for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/locallm-tui/internal/config"
	"github.com/jeranaias/locallm-tui/internal/conversation"
	"github.com/jeranaias/locallm-tui/internal/engine"
	"github.com/jeranaias/locallm-tui/internal/registry"
	"github.com/jeranaias/locallm-tui/internal/session"
	"github.com/jeranaias/locallm-tui/internal/storage"
	"github.com/jeranaias/locallm-tui/internal/summary"
	"github.com/jeranaias/locallm-tui/internal/ui"
	"github.com/jeranaias/locallm-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		flagModel   = flag.String("model", "", "startup model (overrides config)")
		flagDataDir = flag.String("data-dir", "", "data directory (overrides config)")
		flagNoAuto  = flag.Bool("no-autostart", false, "do not launch the inference server")
		flagVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *flagVersion {
		fmt.Printf("locallm %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "locallm requires an interactive terminal")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config.
	if *flagModel != "" {
		cfg.Engine.DefaultModel = *flagModel
	}
	if *flagDataDir != "" {
		cfg.DataDir = *flagDataDir
	}
	if *flagNoAuto {
		cfg.Engine.AutoStart = false
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// Background logging goes to a file; stdout belongs to the TUI.
	if logDir, err := config.Dir(); err == nil {
		if f, err := os.OpenFile(logDir+"/locallm.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600); err == nil {
			log.SetOutput(f)
			defer f.Close()
		}
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening conversation database: %w", err)
	}
	defer store.Close()

	// Engine
	clientCfg := engine.DefaultClientConfig()
	clientCfg.BaseURL = cfg.Engine.ServerURL
	clientCfg.ServerCommand = cfg.Engine.ServerCommand
	clientCfg.AutoStart = cfg.Engine.AutoStart
	eng := engine.New(engine.NewClient(clientCfg))

	// Conversation store with persisted state
	convStore := conversation.NewStore(store)
	convStore.SetMaxMessages(cfg.Chat.MaxMessages)
	defer convStore.Close()

	if err := convStore.LoadFromStorage(); err != nil {
		log.Printf("main: could not load conversations: %v", err)
	}
	if convStore.Count() == 0 {
		convStore.Create()
	}

	// Title summarization, run synchronously on the first user message of
	// each conversation, before its first generation starts.
	titles := summary.NewGenerator(eng)
	convStore.SetFirstUserMessageHook(func(conversationID, content string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		convStore.RenameTitle(conversationID, titles.TitleFor(ctx, conversationID, content))
	})

	// Session orchestration
	notifier := ui.NewToastNotifier()
	sessionMgr := session.NewManager(eng, convStore, notifier)
	sessionMgr.SetSystemPrompt(cfg.Chat.SystemPrompt)

	models := registry.NewManager(eng, store)

	theme := styles.NewTheme(cfg.UI.Theme)
	app := ui.New(theme, cfg, eng, convStore, sessionMgr, models)

	p := tea.NewProgram(app, tea.WithAltScreen())

	// Wire async callbacks into the running program.
	notifier.Attach(p)
	sessionMgr.SetPartialFunc(func(conversationID, partial string) {
		p.Send(ui.PartialMsg{ConversationID: conversationID, Text: partial})
	})
	eng.SetProgressFunc(func(status string, fraction float64) {
		p.Send(ui.InstallProgressMsg{Status: status, Fraction: fraction})
	})

	// Live-reload chat settings when the config file changes.
	if path, err := config.Path(); err == nil {
		if watcher, err := config.NewWatcher(path, 500*time.Millisecond, func(next *config.Config) {
			sessionMgr.SetSystemPrompt(next.Chat.SystemPrompt)
			convStore.SetMaxMessages(next.Chat.MaxMessages)
		}); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running locallm: %w", err)
	}
	return nil
}
