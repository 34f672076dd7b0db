package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"project_supportbot/internal/entities"
	"project_supportbot/internal/interfaces"
	"project_supportbot/internal/usecases"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /quick        list quick replies
  /quick <n>    send quick reply n
  /stats [k]    show analytics, top k intents
  /reset        start over
  /quit         leave`

var historyFile string

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE:  runChat,
	}
	cmd.Flags().StringVar(&historyFile, "history", defaultHistoryFile(), "Input history file (empty disables history)")

	RootCmd.AddCommand(cmd)
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".supportbot_history")
}

// chatSession is the conversation as seen by the terminal renderer
type chatSession interface {
	interfaces.Conversation
	Analytics(topK int) usecases.AnalyticsReport
}

// chatRenderer prints conversation events and interprets REPL input
type chatRenderer struct {
	session chatSession
	topK    int

	mu  sync.Mutex
	out io.Writer

	idle        chan struct{}
	unsubscribe func()
}

func newChatRenderer(session chatSession, out io.Writer, topK int) *chatRenderer {
	r := &chatRenderer{
		session: session,
		topK:    topK,
		out:     out,
		idle:    make(chan struct{}, 1),
	}
	r.unsubscribe = session.Subscribe(r.onEvent)
	return r
}

func (r *chatRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *chatRenderer) onEvent(ev entities.Event) {
	switch ev.Type {
	case entities.EventReset:
		r.printf("-- conversation reset --\n")
	case entities.EventMessageAppended:
		if ev.Message != nil && ev.Message.IsAgent() {
			r.printf("agent> %s\n", ev.Message.Content)
		}
	case entities.EventStatusChanged:
		if ev.Status == entities.StatusAwaitingResponse {
			r.printf("agent is typing…\n")
			return
		}
		select {
		case r.idle <- struct{}{}:
		default:
		}
	}
}

// waitIdle blocks until the pending reply lands or ctx ends
func (r *chatRenderer) waitIdle(ctx context.Context) {
	if r.session.Status() == entities.StatusIdle {
		return
	}
	select {
	case <-r.idle:
	case <-ctx.Done():
	}
}

// handle runs one line of input. submitted reports whether a reply is now pending.
func (r *chatRenderer) handle(input string) (quit, submitted bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, false
	}
	if !strings.HasPrefix(input, "/") {
		return false, r.submit(func() (*entities.Message, error) { return r.session.Submit(input) })
	}

	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true, false
	case "/help":
		r.printf("%s\n", chatHelp)
	case "/reset":
		r.drainIdle()
		r.session.ResetConversation()
	case "/quick":
		if len(fields) == 1 {
			for i, label := range r.session.QuickReplies() {
				r.printf("  %d. %s\n", i+1, label)
			}
			return false, false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			r.printf("usage: /quick <n>\n")
			return false, false
		}
		return false, r.submit(func() (*entities.Message, error) { return r.session.SubmitQuickReply(n - 1) })
	case "/stats":
		k := r.topK
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				r.printf("usage: /stats [k]\n")
				return false, false
			}
			k = n
		}
		r.printStats(r.session.Analytics(k))
	default:
		r.printf("unknown command %s, try /help\n", fields[0])
	}
	return false, false
}

func (r *chatRenderer) submit(fn func() (*entities.Message, error)) bool {
	r.drainIdle()
	msg, err := fn()
	switch {
	case errors.Is(err, entities.ErrConversationBusy):
		r.printf("please wait, the assistant is still replying\n")
	case errors.Is(err, entities.ErrUnknownQuickReply):
		r.printf("no such quick reply, see /quick\n")
	case err != nil:
		r.printf("error: %v\n", err)
	case msg != nil:
		return true
	}
	return false
}

func (r *chatRenderer) drainIdle() {
	select {
	case <-r.idle:
	default:
	}
}

func (r *chatRenderer) printStats(report usecases.AnalyticsReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "messages: %d total, %d from you, %d from the agent\n",
		report.TotalMessages, report.UserMessageCount, report.AgentMessageCount)

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "INTENT\tCOUNT\tSHARE\n")
	for _, stat := range report.TopIntents {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", stat.Intent, stat.Count, stat.Percentage)
	}
	tw.Flush()

	p := report.Performance
	fmt.Fprintf(r.out, "performance (configured, not measured): avg response %.1fs, resolution %.0f%%, satisfaction %.1f/%.0f, first contact %.0f%%, escalation %.0f%%\n",
		p.AvgResponseTimeSeconds, p.ResolutionRate, p.SatisfactionScore, p.SatisfactionScale, p.FirstContactResolution, p.EscalationRate)
}

func (r *chatRenderer) Close() {
	r.unsubscribe()
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer saveHistory(line, historyFile)
	}

	renderer := newChatRenderer(a.session, cmd.OutOrStdout(), cfg.TopK)
	defer renderer.Close()

	for _, m := range a.session.Snapshot() {
		renderer.printf("%s> %s\n", m.Role, m.Content)
	}
	renderer.printf("(type /help for commands)\n")

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			// Ctrl+C, Ctrl+D and closed stdin all end the session
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				renderer.printf("\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, submitted := renderer.handle(input)
		if quit {
			return nil
		}
		if submitted {
			renderer.waitIdle(ctx)
		}
	}
}

func saveHistory(line *liner.State, path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
