package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lokapasar/chatsync/internal/chat"
	"github.com/lokapasar/chatsync/internal/config"
	"github.com/lokapasar/chatsync/internal/devserver"
	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/observability"
	"github.com/lokapasar/chatsync/internal/session"
	"github.com/lokapasar/chatsync/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatcli",
		Short:         "Marketplace inquiry chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newThreadsCmd())
	root.AddCommand(newInquireCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newTailCmd())
	return root
}

// buildController assembles the client stack from environment configuration.
// When no token is configured one is minted locally, which only works against
// the dev backend sharing the same secret.
func buildController() (*chat.Controller, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.AppEnv == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	userID := cfg.UserID
	if userID == "" {
		userID = "buyer-1"
	}

	token := cfg.Token
	if token == "" {
		token, err = devserver.MintDevToken(cfg.JWTSecret, userID, cfg.Role, 24*time.Hour)
		if err != nil {
			return nil, config.Config{}, fmt.Errorf("failed to mint dev token: %w", err)
		}
	}

	if cfg.MetricsAddr != "" {
		observability.RegisterMetrics()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	sess := session.New(userID, cfg.Role, token)
	client := transport.NewClient(cfg.BaseURL, sess, cfg.HTTPTimeout, logger)
	ctrl := chat.NewController(client, sess, chat.Options{
		PageSize:     cfg.PageSize,
		PollInterval: cfg.PollInterval,
	}, logger)

	return ctrl, cfg, nil
}

func newThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List inquiry threads for the configured role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := buildController()
			if err != nil {
				return err
			}
			defer ctrl.Shutdown()

			if err := ctrl.LoadThreads(cmd.Context()); err != nil {
				return err
			}

			threads := ctrl.Threads().Threads()
			if len(threads) == 0 {
				cmd.Println("no threads")
				return nil
			}

			for _, thread := range threads {
				marker := " "
				if thread.UnreadCount > 0 {
					marker = fmt.Sprintf("(%d)", thread.UnreadCount)
				}
				cmd.Printf("%s  %s  %s %s\n", thread.ChatID, thread.OtherParticipantName, thread.LastMessage, marker)
			}
			return nil
		},
	}
}

func newInquireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inquire <productId>",
		Short: "Open (or reuse) the inquiry thread for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := buildController()
			if err != nil {
				return err
			}
			defer ctrl.Shutdown()

			chatID, err := ctrl.StartInquiry(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Println(chatID)
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <chatId> <text>",
		Short: "Send one text message to a thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, _, err := buildController()
			if err != nil {
				return err
			}
			defer ctrl.Shutdown()

			if err := ctrl.OpenThread(cmd.Context(), args[0]); err != nil {
				return err
			}

			ctrl.Composer().SetText(strings.Join(args[1:], " "))
			if err := ctrl.Composer().Send(cmd.Context()); err != nil {
				return err
			}

			cmd.Println("sent")
			return nil
		},
	}
}

func newTailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail <chatId>",
		Short: "Follow a thread, sending stdin lines as messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cfg, err := buildController()
			if err != nil {
				return err
			}
			defer ctrl.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := ctrl.OpenThread(ctx, args[0]); err != nil {
				return err
			}

			printed := make(map[string]struct{})
			printNew := func() {
				for _, message := range ctrl.Timeline().Chronological() {
					if _, seen := printed[message.ID]; seen {
						continue
					}
					printed[message.ID] = struct{}{}
					printMessage(cmd, message)
				}
			}
			printNew()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			ticker := time.NewTicker(cfg.PollInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := ctrl.Poller().LastError(); err != nil {
						cmd.PrintErrf("! sync degraded: %v\n", err)
					}
					printNew()
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					ctrl.Composer().SetText(line)
					if err := ctrl.Composer().Send(ctx); err != nil {
						cmd.PrintErrf("! send failed, draft kept: %v\n", err)
						continue
					}
					printNew()
				}
			}
		},
	}
}

func printMessage(cmd *cobra.Command, message dto.Message) {
	stamp := message.CreatedAt.Local().Format("15:04")
	if message.IsFile() {
		cmd.Printf("[%s] %s: %s (%s)\n", stamp, message.SenderID, message.Summary(), message.AttachmentURL)
		return
	}
	cmd.Printf("[%s] %s: %s\n", stamp, message.SenderID, message.MessageText)
}
