package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"go.aimuz.me/signal/internal/app"
	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/render"
)

// copilot is the service surface driven by the prompt.
type copilot interface {
	Connect(ctx context.Context) error
	Disconnect()
	StartListening(ctx context.Context) error
	StopListening() error
	SendCommand(text string) error
	HandleCommand(cmd types.Command, source string) error
	Status() types.Status
	History() []types.Signal
	Active() (types.Display, bool)
	ResponseReady() bool
	Select(i int) error
	MIMEType() string
	Level() float32
	Speaking() bool
	Gesture() app.GestureStatus
}

const helpText = `commands:
  connect            open the backend connection
  listen             start streaming audio
  stop               stop streaming audio
  copy               copy the suggested response on screen
  show [n]           show signal n (1-based), or the active one
  history            list all signals
  send <text>        send a text command to the backend
  status             show connection, audio and gesture state
  disconnect         close the backend connection
  quit               exit`

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("connect"),
		readline.PcItem("listen"),
		readline.PcItem("stop"),
		readline.PcItem("copy"),
		readline.PcItem("show"),
		readline.PcItem("history"),
		readline.PcItem("send"),
		readline.PcItem("status"),
		readline.PcItem("disconnect"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

type prompt struct {
	svc copilot
	r   *render.Renderer
}

// exec runs one prompt line and reports whether the user asked to quit.
func (p *prompt) exec(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(name) {
	case "":
	case "quit", "exit":
		return true
	case "help", "?":
		p.r.Notice(helpText)
	case "connect":
		err = p.svc.Connect(ctx)
	case "disconnect":
		p.svc.Disconnect()
	case "listen":
		err = p.svc.StartListening(ctx)
	case "stop":
		err = p.svc.StopListening()
	case "copy":
		err = p.svc.HandleCommand(types.CommandCopyResponse, app.SourcePrompt)
	case "send":
		if arg == "" {
			err = errors.New("usage: send <text>")
			break
		}
		err = p.svc.SendCommand(arg)
	case "history":
		active, _ := p.activeIndex()
		p.r.History(p.svc.History(), active)
	case "show":
		err = p.show(arg)
	case "status":
		p.status()
	default:
		err = fmt.Errorf("unknown command %q, try help", name)
	}

	if err != nil {
		p.r.Error(err)
	}
	return false
}

func (p *prompt) show(arg string) error {
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("usage: show [n]: %w", err)
		}
		// Select re-renders through the active event.
		return p.svc.Select(n - 1)
	}
	d, ok := p.svc.Active()
	if !ok {
		p.r.Notice("no signals yet")
		return nil
	}
	p.r.Display(d, len(p.svc.History()), p.svc.ResponseReady())
	return nil
}

func (p *prompt) status() {
	detail := ""
	if mime := p.svc.MIMEType(); mime != "" {
		detail = fmt.Sprintf("%s  level %.3f", mime, p.svc.Level())
		if p.svc.Speaking() {
			detail += "  speaking"
		}
	}
	p.r.Status(p.svc.Status(), detail)

	g := p.svc.Gesture()
	switch {
	case !g.Enabled:
		p.r.Notice("gesture: off")
	case g.Failed:
		p.r.Notice("gesture: camera unavailable")
	case !g.Loaded:
		p.r.Notice("gesture: loading")
	case g.Armed:
		p.r.Notice("gesture: armed")
	default:
		p.r.Notice("gesture: waiting for a suggested response")
	}
}

func (p *prompt) activeIndex() (int, bool) {
	d, ok := p.svc.Active()
	if !ok {
		return -1, false
	}
	return d.Index, true
}
