// chat.go implements the "slipway chat" command: refine a prompt in a
// conversation with the assistant, then build it.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/berth-dev/slipway/internal/assistant"
	"github.com/berth-dev/slipway/internal/execute"
	"github.com/berth-dev/slipway/internal/history"
	"github.com/berth-dev/slipway/internal/session"
	"github.com/berth-dev/slipway/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Refine a prompt with the assistant, then build it",
	Long: `Start a conversation that refines your idea into a build prompt.
Type your requirements; the assistant asks clarifying questions when a
model is configured. Commands:

  /build         build from the conversation so far
  /cancel        discard the conversation and start over
  /model NAME    set the generator model for this conversation
  /status        show conversation statistics
  /quit          leave`,
	RunE: runChat,
}

var (
	chatModel   string
	chatPublish bool
	chatOwner   string
)

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Generator model (default from config)")
	chatCmd.Flags().BoolVar(&chatPublish, "publish", false, "Publish builds to GitHub when they complete")
	chatCmd.Flags().StringVar(&chatOwner, "owner", "", "GitHub owner for new repositories")
}

// chat is one interactive refinement loop on a terminal or pipe.
type chat struct {
	app     *app
	manager *session.Manager
	refiner *assistant.Refiner
	key     session.Key
	model   string
	pub     publishOptions
	out     io.Writer
	tty     bool
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(loggerFrom(cmd.Context()))
	if err != nil {
		return err
	}
	defer a.Close()

	model := chatModel
	if model == "" {
		model = a.cfg.Build.DefaultModel
	}
	if err := a.cfg.ValidateModel(model); err != nil {
		return err
	}

	c := &chat{
		app:     a,
		refiner: assistant.NewRefiner(a.completer(), a.logger),
		key:     session.Key{UserID: currentOwner(), ChannelID: "terminal"},
		model:   model,
		pub:     publishOptions{enabled: a.cfg.Publish.Enabled || chatPublish, owner: chatOwner},
		out:     os.Stdout,
		tty:     term.IsTerminal(int(os.Stdout.Fd())),
	}
	c.manager = session.NewManager(session.Options{
		Expiry:        a.cfg.ConversationExpiry(),
		SweepInterval: a.cfg.SweepInterval(),
		Cleanup:       c.archive,
		Journal:       a.journal,
		Logger:        a.logger,
	})
	defer c.manager.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !c.refiner.Configured() {
		fmt.Fprintln(c.out, "No assistant configured (set OPENAI_API_KEY). Your messages are collected as-is; type /build when done.")
	}
	fmt.Fprintln(c.out, "Describe what you want to build. /build to start, /quit to leave.")
	return c.loop(ctx, readLines(os.Stdin))
}

// readLines delivers stdin lines until EOF. The reader goroutine ends with
// the process.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

func (c *chat) loop(ctx context.Context, lines <-chan string) error {
	for {
		if c.tty {
			fmt.Fprint(c.out, "> ")
		}
		var line string
		select {
		case <-ctx.Done():
			c.cancelQuietly()
			return nil
		case l, ok := <-lines:
			if !ok {
				c.cancelQuietly()
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		quit, err := c.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether the loop should end.
func (c *chat) handle(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		c.cancelQuietly()
		return true, nil
	case "/cancel":
		if _, err := c.manager.Cancel(c.key); err != nil {
			fmt.Fprintln(c.out, "Nothing to cancel.")
			return false, nil
		}
		fmt.Fprintln(c.out, "Conversation discarded.")
		return false, nil
	case "/model":
		return false, c.setModel(strings.TrimSpace(arg))
	case "/status":
		c.status()
		return false, nil
	case "/build":
		return false, c.build(ctx)
	}
	return false, c.say(ctx, line)
}

// say adds a user turn, opening a conversation when there is none, and
// prints the assistant's reply.
func (c *chat) say(ctx context.Context, text string) error {
	snap, err := c.manager.AddTurn(c.key, text, "")
	if errors.Is(err, session.ErrNoSuchSession) {
		if _, err := c.manager.Start(c.key, c.model); err != nil {
			return fmt.Errorf("starting conversation: %w", err)
		}
		snap, err = c.manager.AddTurn(c.key, text, "")
	}
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}

	// The new turn is already in snap; the refiner takes it separately.
	prior := assistantHistory(snap.Turns[:len(snap.Turns)-1])
	reply, err := c.refiner.Reply(ctx, prior, text)
	if err != nil {
		return nil
	}
	if _, err := c.manager.AddReply(c.key, reply.Text, ""); err != nil {
		c.app.logger.Debug("add reply", zap.Error(err))
	}
	c.print(reply.Text)
	if reply.Ready {
		fmt.Fprintln(c.out, "\nThe prompt looks ready. Type /build to start, or keep refining.")
	}
	return nil
}

func (c *chat) setModel(model string) error {
	if err := c.app.cfg.ValidateModel(model); err != nil {
		fmt.Fprintf(c.out, "Invalid model: %v\n", err)
		return nil
	}
	c.model = model
	if err := c.manager.SetModel(c.key, model); err != nil && !errors.Is(err, session.ErrNoSuchSession) {
		return err
	}
	if model == "" {
		fmt.Fprintln(c.out, "Using the generator's default model.")
	} else {
		fmt.Fprintf(c.out, "Model set to %s.\n", model)
	}
	return nil
}

func (c *chat) status() {
	snap, err := c.manager.Get(c.key)
	if err != nil {
		fmt.Fprintln(c.out, "No conversation in progress.")
		return
	}
	st := snap.Stats()
	fmt.Fprintf(c.out, "Messages: %d  Words: %d  Characters: %d  Idle: %s\n",
		st.Messages, st.Words, st.Chars, time.Since(snap.LastActivityAt).Truncate(time.Second))
}

// build finalizes the conversation, turns it into one prompt and runs it.
func (c *chat) build(ctx context.Context) error {
	snap, err := c.manager.Get(c.key)
	if err != nil || snap.UserText() == "" {
		fmt.Fprintln(c.out, "Nothing to build yet. Describe your project first.")
		return nil
	}
	t, err := c.manager.Finalize(c.key)
	if err != nil {
		fmt.Fprintln(c.out, "Conversation already closed.")
		return nil
	}

	prompt, err := c.refiner.Finalize(ctx, assistantHistory(t.Turns))
	if rerr := c.record(t, prompt); rerr != nil {
		c.app.logger.Warn("archive conversation", zap.Error(rerr))
	}
	if err != nil {
		return nil
	}
	if err := c.app.cfg.ValidatePrompt(prompt); err != nil {
		fmt.Fprintf(c.out, "Cannot build: %v\n", err)
		return nil
	}

	res, err := buildOnce(ctx, c.app, c.pub, ui.ModeAuto, execute.Request{
		Owner:  c.key.UserID,
		Prompt: prompt,
		Model:  t.Model,
	})
	if err != nil {
		fmt.Fprintf(c.out, "Build not started: %v\n", err)
		return nil
	}
	if err := buildError(res); err != nil {
		fmt.Fprintln(c.out, err)
	}
	return nil
}

func (c *chat) cancelQuietly() {
	if _, err := c.manager.Cancel(c.key); err != nil && !errors.Is(err, session.ErrNoSuchSession) {
		c.app.logger.Debug("cancel conversation", zap.Error(err))
	}
}

func (c *chat) print(text string) {
	if !c.tty {
		fmt.Fprintln(c.out, text)
		return
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	fmt.Fprint(c.out, ui.RenderMarkdown(text, width))
}

// archive stores a conversation closed by the manager. Finalized ones are
// skipped here; build records them once the prompt is known.
func (c *chat) archive(_ context.Context, t session.Transcript) error {
	if t.Reason == session.ReasonFinalized {
		return nil
	}
	return c.record(t, "")
}

// record writes a closed conversation to the history database. Cancelled
// conversations keep their row but not their messages.
func (c *chat) record(t session.Transcript, prompt string) error {
	if c.app.history == nil {
		return nil
	}
	conv := history.Conversation{
		ID:        t.ID,
		UserID:    t.Key.UserID,
		ChannelID: t.Key.ChannelID,
		Outcome:   string(t.Reason),
		Prompt:    prompt,
		CreatedAt: t.CreatedAt,
		ClosedAt:  t.ClosedAt,
	}
	var msgs []history.Message
	if t.Reason != session.ReasonCancelled {
		msgs = make([]history.Message, 0, len(t.Turns))
		for _, turn := range t.Turns {
			msgs = append(msgs, history.Message{Role: string(turn.Role), Content: turn.Text, Timestamp: turn.At})
		}
	}
	_, err := c.app.history.ArchiveConversation(conv, msgs)
	return err
}

// assistantHistory converts conversation turns to chat messages.
func assistantHistory(turns []session.Turn) []assistant.Message {
	msgs := make([]assistant.Message, 0, len(turns))
	for _, t := range turns {
		role := assistant.RoleUser
		if t.Role == session.RoleAssistant {
			role = assistant.RoleAssistant
		}
		msgs = append(msgs, assistant.Message{Role: role, Content: t.Text})
	}
	return msgs
}
