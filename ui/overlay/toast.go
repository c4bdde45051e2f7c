package overlay

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

// ToastKind identifies the kind of toast notification.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastWarning
	ToastError
	ToastLoading
)

const (
	InfoDismissAfter    = 3 * time.Second
	SuccessDismissAfter = 4 * time.Second
	WarningDismissAfter = 6 * time.Second
	ErrorDismissAfter   = 8 * time.Second

	MinToastWidth = 24
	MaxToastWidth = 56
	MaxToasts     = 4

	toastTickInterval = 100 * time.Millisecond
)

func dismissAfter(kind ToastKind) time.Duration {
	switch kind {
	case ToastSuccess:
		return SuccessDismissAfter
	case ToastWarning:
		return WarningDismissAfter
	case ToastError:
		return ErrorDismissAfter
	case ToastLoading:
		return 0
	}
	return InfoDismissAfter
}

type toast struct {
	id      int
	kind    ToastKind
	message string
	// expires is zero for toasts that stay until resolved.
	expires time.Time
}

// ToastTickMsg drives expiry while toasts are visible.
type ToastTickMsg struct{}

// Notifier stacks short-lived messages in a corner of the dialog: sync
// digests, the tab pin warning, and errors that do not belong to a step.
type Notifier struct {
	toasts  []*toast
	spinner spinner.Model
	nextID  int
	now     func() time.Time
}

func NewNotifier() *Notifier {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	s.Style = lipgloss.NewStyle().Foreground(ColorGold)
	return &Notifier{spinner: s, now: time.Now}
}

func (n *Notifier) Info(msg string) int    { return n.push(ToastInfo, msg) }
func (n *Notifier) Success(msg string) int { return n.push(ToastSuccess, msg) }
func (n *Notifier) Warning(msg string) int { return n.push(ToastWarning, msg) }
func (n *Notifier) Error(msg string) int   { return n.push(ToastError, msg) }

// Loading shows msg with a spinner until Resolve is called with its id.
func (n *Notifier) Loading(msg string) int { return n.push(ToastLoading, msg) }

// Resolve turns the toast with id into kind/msg and starts its timer.
// Unknown ids are ignored.
func (n *Notifier) Resolve(id int, kind ToastKind, msg string) {
	for _, t := range n.toasts {
		if t.id == id {
			t.kind = kind
			t.message = msg
			t.expires = n.expiry(kind)
			return
		}
	}
}

func (n *Notifier) expiry(kind ToastKind) time.Time {
	d := dismissAfter(kind)
	if d == 0 {
		return time.Time{}
	}
	return n.now().Add(d)
}

func (n *Notifier) push(kind ToastKind, msg string) int {
	// The same message twice restarts the timer instead of stacking.
	for _, t := range n.toasts {
		if t.kind == kind && t.message == msg {
			t.expires = n.expiry(kind)
			return t.id
		}
	}

	for len(n.toasts) >= MaxToasts {
		n.dropOldest()
	}
	n.nextID++
	n.toasts = append(n.toasts, &toast{id: n.nextID, kind: kind, message: msg, expires: n.expiry(kind)})
	return n.nextID
}

// dropOldest removes the oldest toast, preferring ones that are not loading.
func (n *Notifier) dropOldest() {
	for i, t := range n.toasts {
		if t.kind != ToastLoading {
			n.toasts = append(n.toasts[:i], n.toasts[i+1:]...)
			return
		}
	}
	n.toasts = n.toasts[1:]
}

// Active reports whether any toast is visible.
func (n *Notifier) Active() bool {
	return len(n.toasts) > 0
}

// Messages returns the visible messages, oldest first.
func (n *Notifier) Messages() []string {
	out := make([]string, 0, len(n.toasts))
	for _, t := range n.toasts {
		out = append(out, t.message)
	}
	return out
}

// Tick returns the command that keeps toasts expiring and spinners turning.
func (n *Notifier) Tick() tea.Cmd {
	return tea.Batch(
		tea.Tick(toastTickInterval, func(time.Time) tea.Msg { return ToastTickMsg{} }),
		n.spinner.Tick,
	)
}

// Update handles ToastTickMsg and spinner ticks. It returns nil once no
// toast is left so the tick loop stops.
func (n *Notifier) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ToastTickMsg:
		n.expire()
		if !n.Active() {
			return nil
		}
		return tea.Tick(toastTickInterval, func(time.Time) tea.Msg { return ToastTickMsg{} })
	case spinner.TickMsg:
		if !n.Active() {
			return nil
		}
		var cmd tea.Cmd
		n.spinner, cmd = n.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (n *Notifier) expire() {
	now := n.now()
	alive := n.toasts[:0]
	for _, t := range n.toasts {
		if t.expires.IsZero() || now.Before(t.expires) {
			alive = append(alive, t)
		}
	}
	n.toasts = alive
}

func toastColor(kind ToastKind) lipgloss.Color {
	switch kind {
	case ToastError:
		return ColorLove
	case ToastWarning, ToastLoading:
		return ColorGold
	}
	return ColorFoam
}

func (n *Notifier) icon(kind ToastKind) string {
	switch kind {
	case ToastSuccess:
		return "✓"
	case ToastWarning:
		return "!"
	case ToastError:
		return "✗"
	case ToastLoading:
		return n.spinner.View()
	}
	return "▸"
}

// toastWidth is the box width for msg: icon, space, text, padding and border.
func toastWidth(msg string) int {
	w := 2 + 1 + runewidth.StringWidth(msg) + 4
	return max(MinToastWidth, min(w, MaxToastWidth))
}

// View renders the toasts stacked and right-aligned.
func (n *Notifier) View() string {
	if !n.Active() {
		return ""
	}
	rendered := make([]string, 0, len(n.toasts))
	for _, t := range n.toasts {
		width := toastWidth(t.message)
		body := wordwrap.String(t.message, width-7)
		body = strings.ReplaceAll(body, "\n", "\n  ")
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(toastColor(t.kind)).
			Padding(0, 1).
			Width(width)
		icon := lipgloss.NewStyle().Foreground(toastColor(t.kind)).Render(n.icon(t.kind))
		rendered = append(rendered, style.Render(icon+" "+body))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}
