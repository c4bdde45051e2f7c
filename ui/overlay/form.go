package overlay

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Option is one choice of a select field.
type Option struct {
	Label string
	Value string
}

// Field describes one input of a FieldForm. A field with Options renders as
// a select; otherwise it is a single-line text input.
type Field struct {
	Key         string
	Title       string
	Placeholder string
	Initial     string
	Required    bool
	Options     []Option
}

// FieldForm is a huh form for the creation steps. Values start from each
// field's Initial so text typed earlier is shown again after navigating back.
type FieldForm struct {
	form      *huh.Form
	fields    []Field
	values    map[string]*string
	title     string
	submitted bool
	canceled  bool
	width     int
}

// NewFieldForm builds a form with the given fields in order.
func NewFieldForm(title string, width int, fields ...Field) *FieldForm {
	f := &FieldForm{
		title:  title,
		width:  width,
		fields: fields,
		values: make(map[string]*string, len(fields)),
	}

	huhFields := make([]huh.Field, 0, len(fields))
	for _, fd := range fields {
		v := fd.Initial
		f.values[fd.Key] = &v
		if len(fd.Options) > 0 {
			opts := make([]huh.Option[string], 0, len(fd.Options))
			for _, o := range fd.Options {
				opts = append(opts, huh.NewOption(o.Label, o.Value))
			}
			huhFields = append(huhFields, huh.NewSelect[string]().
				Key(fd.Key).
				Title(fd.Title).
				Options(opts...).
				Value(f.values[fd.Key]))
			continue
		}
		huhFields = append(huhFields, huh.NewInput().
			Key(fd.Key).
			Title(fd.Title).
			Placeholder(fd.Placeholder).
			Value(f.values[fd.Key]))
	}

	f.form = huh.NewForm(huh.NewGroup(huhFields...)).
		WithTheme(ThemeRosePine()).
		WithWidth(max(width-6, 34)).
		WithShowHelp(false).
		WithShowErrors(false)
	_ = f.form.Init()

	return f
}

func (f *FieldForm) updateForm(msg tea.Msg) {
	updated, _ := f.form.Update(msg)
	if form, ok := updated.(*huh.Form); ok {
		f.form = form
	}
}

// Ready reports whether every required field has a non-blank value.
func (f *FieldForm) Ready() bool {
	for _, fd := range f.fields {
		if fd.Required && f.Value(fd.Key) == "" {
			return false
		}
	}
	return true
}

// HandleKeyPress processes a key and returns true when the form is done,
// either submitted or canceled.
func (f *FieldForm) HandleKeyPress(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyEsc:
		f.canceled = true
		return true
	case tea.KeyEnter:
		// Let the focused field commit its value; the form itself never advances.
		f.updateForm(msg)
		if !f.Ready() {
			return false
		}
		f.submitted = true
		return true
	case tea.KeyTab:
		f.updateForm(huh.NextField())
		return false
	case tea.KeyShiftTab:
		f.updateForm(huh.PrevField())
		return false
	}
	f.updateForm(msg)
	return false
}

// Value returns the trimmed value of key.
func (f *FieldForm) Value(key string) string {
	v, ok := f.values[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(*v)
}

// Reopen clears the submitted and canceled flags so a failed submit can be retried.
func (f *FieldForm) Reopen() {
	f.submitted = false
	f.canceled = false
}

func (f *FieldForm) IsSubmitted() bool { return f.submitted }
func (f *FieldForm) IsCanceled() bool  { return f.canceled }

// Render returns the form with its title and key hints.
func (f *FieldForm) Render(hint string) string {
	content := TitleStyle.MarginBottom(1).Render(f.title) + "\n"
	content += f.form.View() + "\n"
	if hint == "" {
		hint = "tab next field · enter submit · esc back"
	}
	content += HintStyle.MarginTop(1).Render(hint)
	return lipgloss.NewStyle().Width(max(f.width, 40)).Render(content)
}
