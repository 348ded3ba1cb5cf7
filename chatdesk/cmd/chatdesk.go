// Terminal client for the chat store
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"chatdesk/chatdesk/config"
	"chatdesk/chatdesk/middlewares"
	"chatdesk/chatdesk/services/llm"
	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/sources"
	"chatdesk/chatdesk/utils/color"
	"chatdesk/chatdesk/utils/jsonutils"
	"chatdesk/chatdesk/utils/logging"

	"go.uber.org/zap"
)

const helpText = `Commands:
  /new              start a new chat
  /list             list chats
  /use <n|id>       switch to a chat
  /delete [id]      delete a chat (default: the active one)
  /model <name>     set the model of the active chat
  /regen            regenerate the last reply
  /state            dump the raw state as JSON
  /token <subject>  mint a bearer token for the HTTP API
  /quit             exit
Anything else is sent as a message.`

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		color.Disable()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := llm.NewClient(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.ColorError(err.Error()))
		os.Exit(1)
	}
	persistence, closePersistence, err := sources.New(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("persistence error", zap.Error(err))
		fmt.Fprintln(os.Stderr, color.ColorError(err.Error()))
		os.Exit(1)
	}
	defer closePersistence()

	store := sessions.New(client, persistence,
		sessions.WithDefaultModel(cfg.DefaultModel),
		sessions.WithLoggers(logging.AppLogger, logging.ErrorLogger),
	)
	store.Initialize(ctx)

	fmt.Println(color.ColorInfo("chatdesk: type /help for commands"))
	newREPL(store, cfg.JWTSecret, os.Stdin, os.Stdout).run(context.Background())
}

type repl struct {
	store     *sessions.Store
	jwtSecret string
	in        io.Reader
	out       io.Writer
}

func newREPL(store *sessions.Store, jwtSecret string, in io.Reader, out io.Writer) *repl {
	return &repl{store: store, jwtSecret: jwtSecret, in: in, out: out}
}

func (r *repl) run(ctx context.Context) {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(r.out, color.ColorPrompt(r.prompt()))
		if !scanner.Scan() {
			break // EOF or error
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			r.send(ctx, line)
			continue
		}
		if !r.command(ctx, line) {
			break
		}
	}
	fmt.Fprintln(r.out, "Goodbye!")
}

func (r *repl) prompt() string {
	sess, ok := r.store.Session(r.store.ActiveSessionID())
	if !ok {
		return "chat> "
	}
	return fmt.Sprintf("%s [%s]> ", jsonutils.Truncate(sess.Title, 20), sess.Model)
}

// command runs a slash command and reports whether the loop should go on.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/new":
		id := r.store.CreateSession(ctx)
		fmt.Fprintln(r.out, color.ColorInfo("new chat "+id))
		r.printSession(id)
	case "/list":
		r.list()
	case "/use":
		if len(args) != 1 {
			r.warn("usage: /use <n|id>")
			break
		}
		id := r.resolve(args[0])
		if err := r.store.SelectSession(ctx, id); err != nil {
			r.fail(err)
			break
		}
		r.printSession(id)
	case "/delete":
		id := r.store.ActiveSessionID()
		if len(args) == 1 {
			id = r.resolve(args[0])
		}
		if !r.store.DeleteSession(ctx, id) {
			r.warn("no chat " + id)
			break
		}
		fmt.Fprintln(r.out, color.ColorInfo("deleted "+id))
	case "/model":
		if len(args) != 1 {
			r.warn("usage: /model <name>")
			break
		}
		if err := r.store.SetSessionModel(ctx, r.store.ActiveSessionID(), args[0]); err != nil {
			r.fail(err)
			break
		}
		fmt.Fprintln(r.out, color.ColorInfo("model set to "+args[0]))
	case "/regen":
		id := r.store.ActiveSessionID()
		if err := r.store.RegenerateLastReply(ctx, id); err != nil {
			r.fail(err)
			break
		}
		r.printLastReply(id)
	case "/state":
		fmt.Fprintln(r.out, jsonutils.ToJSON(r.store.State()))
	case "/token":
		if len(args) != 1 {
			r.warn("usage: /token <subject>")
			break
		}
		token, err := middlewares.IssueToken(r.jwtSecret, args[0], 24*time.Hour)
		if err != nil {
			r.fail(err)
			break
		}
		fmt.Fprintln(r.out, token)
	default:
		r.warn("unknown command " + cmd + ", try /help")
	}
	return true
}

func (r *repl) send(ctx context.Context, text string) {
	id, finish, ok := r.store.BeginSend(ctx, text)
	if !ok {
		r.warn("no active chat, try /new")
		return
	}
	fmt.Fprintln(r.out, color.ColorInfo("..."))
	finish()
	r.printLastReply(id)
}

// resolve accepts a 1-based position from /list or a session id.
func (r *repl) resolve(arg string) string {
	if n, err := strconv.Atoi(arg); err == nil {
		st := r.store.State()
		if n >= 1 && n <= len(st.Sessions) {
			return st.Sessions[n-1].ID
		}
	}
	return arg
}

func (r *repl) list() {
	st := r.store.State()
	for i, s := range st.Sessions {
		line := fmt.Sprintf("%2d. %-40s %-14s %3d msgs  %s", i+1, jsonutils.Truncate(s.Title, 37), s.Model, len(s.Messages), s.ID)
		if s.ID == st.ActiveSessionID {
			line = color.ColorActive("* " + line)
		} else {
			line = "  " + line
		}
		if r.store.IsPending(s.ID) {
			line += color.ColorWarning(" (waiting)")
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *repl) printSession(id string) {
	sess, ok := r.store.Session(id)
	if !ok {
		return
	}
	for _, m := range sess.Messages {
		r.printMessage(m)
	}
}

func (r *repl) printLastReply(id string) {
	sess, ok := r.store.Session(id)
	if !ok || len(sess.Messages) == 0 {
		r.warn("chat was deleted before the reply arrived")
		return
	}
	r.printMessage(sess.Messages[len(sess.Messages)-1])
}

func (r *repl) printMessage(m sessions.Message) {
	stamp := m.Timestamp.Local().Format("15:04")
	if m.Role == sessions.RoleUser {
		fmt.Fprintf(r.out, "%s %s\n", color.ColorUser("you "+stamp+":"), m.Content)
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", color.ColorAssistant("assistant "+stamp+":"), m.Content)
}

func (r *repl) warn(msg string) {
	fmt.Fprintln(r.out, color.ColorWarning(msg))
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.out, color.ColorError(err.Error()))
}
