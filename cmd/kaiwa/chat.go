package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/kaiwa/internal/config"
	"github.com/kalambet/kaiwa/internal/profile"
	"github.com/kalambet/kaiwa/internal/responder"
	"github.com/kalambet/kaiwa/internal/session"
	"github.com/kalambet/kaiwa/internal/storage"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long: `Start an interactive chat session.

Conversations and the learned profile persist in the data directory unless
--ephemeral is given. With --mock (or chat.mock in config) replies come from
a canned pool and no server is needed.

Commands inside the session:
  /new            start a new conversation
  /list           list conversations
  /switch <id>    switch to a conversation by id prefix
  /profile        show the learned profile
  /forget <key>   remove profile attributes under a key
  /quit           exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mock, _ := cmd.Flags().GetBool("mock")
		ephemeral, _ := cmd.Flags().GetBool("ephemeral")
		return runChat(cmd.Flags().Changed("mock"), mock, ephemeral)
	},
}

func init() {
	chatCmd.Flags().Bool("mock", false, "use canned replies, no server required")
	chatCmd.Flags().Bool("ephemeral", false, "keep conversations in memory only")
}

func runChat(mockSet, mockFlag, ephemeral bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	mock := cfg.Chat.Mock
	if mockSet {
		mock = mockFlag
	}

	sess, closeStore, err := buildSession(cfg, mock, ephemeral)
	if err != nil {
		return err
	}
	defer func() {
		sess.Wait()
		if closeStore != nil {
			if err := closeStore(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
			}
		}
	}()

	if mock {
		printStep("mock mode: canned replies, profile learning disabled")
	} else {
		printStep("connected to %s", cfg.Service.BaseURL)
	}

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(colorize(colorBold, "you> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runChatCommand(sess, line)
			if err != nil {
				printError("%v", err)
			}
			if quit {
				return nil
			}
			continue
		}

		active := sess.ActiveConversation()
		if active == "" {
			conv, err := sess.NewConversation()
			if err != nil {
				printError("starting conversation: %v", err)
				continue
			}
			active = conv.ID
		}

		if err := sess.Submit(ctx, active, line); err != nil {
			printError("%v", err)
			continue
		}

		msgs, err := sess.Messages(active)
		if err != nil {
			printError("%v", err)
			continue
		}
		if len(msgs) > 0 {
			fmt.Printf("%s %s\n", colorize(colorCyan, "kaiwa>"), msgs[len(msgs)-1].Content)
		}
	}
}

func runChatCommand(sess *session.Session, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		conv, err := sess.NewConversation()
		if err != nil {
			return false, err
		}
		printSuccess("new conversation %s", shortID(conv.ID))
		return false, nil

	case "/list":
		convs, err := sess.Conversations()
		if err != nil {
			return false, err
		}
		if len(convs) == 0 {
			fmt.Println("no conversations yet")
			return false, nil
		}
		active := sess.ActiveConversation()
		for _, c := range convs {
			marker := " "
			if c.ID == active {
				marker = colorize(colorGreen, "*")
			}
			fmt.Printf("%s %s  %s\n", marker, colorize(colorCyan, shortID(c.ID)), c.Title)
		}
		return false, nil

	case "/switch":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /switch <id>")
		}
		convs, err := sess.Conversations()
		if err != nil {
			return false, err
		}
		for _, c := range convs {
			if strings.HasPrefix(c.ID, fields[1]) {
				if err := sess.SelectConversation(c.ID); err != nil {
					return false, err
				}
				printSuccess("switched to %s (%s)", shortID(c.ID), c.Title)
				return false, nil
			}
		}
		return false, fmt.Errorf("no conversation matching %q", fields[1])

	case "/profile":
		summary := sess.ProfileSummary()
		if summary == "" {
			fmt.Println("no profile attributes learned yet")
			return false, nil
		}
		for _, line := range strings.Split(summary, "\n") {
			fmt.Printf("  %s\n", line)
		}
		return false, nil

	case "/forget":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /forget <key>")
		}
		sess.DeleteProfileAttribute(fields[1])
		printSuccess("forgot %q", fields[1])
		return false, nil

	case "/help":
		fmt.Println("commands: /new /list /switch <id> /profile /forget <key> /quit")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (try /help)", fields[0])
	}
}

// newMockResponder is swappable so tests can drop the simulated latency.
var newMockResponder = func() responder.Responder {
	return responder.NewMock()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// buildSession assembles the session from config: a durable or in-memory
// store, and a mock or live responder.
func buildSession(cfg config.Config, mock, ephemeral bool) (*session.Session, func() error, error) {
	var (
		store      session.ConversationStore
		profileMgr *profile.Manager
		closeStore func() error
	)

	if ephemeral {
		store = storage.NewMemoryStore()
		profileMgr = profile.NewManager()
	} else {
		s, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", err)
		}
		mgr, err := profile.NewManagerWithStore(s)
		if err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("loading profile: %w", err)
		}
		store = s
		profileMgr = mgr
		closeStore = s.Close
	}

	var (
		resp      responder.Responder
		refresher session.ProfileRefresher
	)
	if mock {
		resp = newMockResponder()
	} else {
		resp = responder.NewChatClient(cfg.Service.BaseURL)
		refresher = responder.NewProfileClient(cfg.Service.BaseURL)
	}

	sess := session.New(session.Config{
		Store:       store,
		Profile:     profileMgr,
		Responder:   resp,
		Refresher:   refresher,
		Mock:        mock,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
	})
	return sess, closeStore, nil
}
