package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/demandboard/internal/api"
	"github.com/jask/demandboard/internal/form"
)

type fieldKind int

const (
	textField fieldKind = iota
	dateField
	choiceField
	fixedField
)

type field struct {
	key     string
	kind    fieldKind
	input   textinput.Model
	choices []string
	matches []string
	sel     int
	// picked is set once the user moves onto a suggestion.
	picked bool
	err    string
}

func newField(key, label string, kind fieldKind, value string, choices []string) *field {
	in := textinput.New()
	in.Prompt = fmt.Sprintf("%-14s", label+":")
	in.CharLimit = 256
	in.Width = 40
	in.SetValue(value)
	if kind == dateField {
		in.Placeholder = "DD/MM/YYYY"
		in.CharLimit = 10
	}
	f := &field{key: key, kind: kind, input: in, choices: choices}
	f.refilter()
	return f
}

func (f *field) refilter() {
	if f.kind != choiceField {
		return
	}
	f.matches = rank(f.input.Value(), f.choices)
	if f.sel >= len(f.matches) {
		f.sel = 0
	}
}

func (f *field) value() string {
	if f.kind == choiceField {
		return resolveChoice(f.input.Value(), f.matches, f.sel, f.picked)
	}
	return strings.TrimSpace(f.input.Value())
}

// dialogOutcome is what a key press did to the dialog.
type dialogOutcome int

const (
	dialogOpen dialogOutcome = iota
	dialogCancelled
	dialogSubmitted
)

// formDialog renders a form.Session as editable fields.
type formDialog struct {
	session *form.Session
	title   string
	fields  []*field
	focus   int
	// sub is set once a submit validates.
	sub *form.Submission
}

func draftDate(d form.Draft, key string) string {
	t := d.StartDate
	if key == form.FieldEndDate {
		t = d.EndDate
	}
	if t.IsZero() {
		return ""
	}
	return form.FormatDate(t)
}

func newFormDialog(s *form.Session) *formDialog {
	d := &formDialog{session: s, title: titleFor(s.Variant())}
	in, draft := s.Input(), s.Draft()
	switch s.Variant() {
	case form.CreateDemand:
		d.fields = []*field{
			newField(form.FieldDescription, "Description", textField, draft.Description, nil),
			newField(form.FieldCounterparty, "Platform lead", choiceField, draft.Counterparty, in.Choices),
		}
	default:
		d.fields = []*field{newField(form.FieldAmount, "Amount", textField, draft.Amount, nil)}
		switch s.Variant() {
		case form.CreateAllocation:
			d.fields = append(d.fields, newField(form.FieldDeliveryTeam, "Delivery team", choiceField, draft.DeliveryTeam, in.Choices))
		case form.UpdateAllocation:
			d.fields = append(d.fields, newField(form.FieldDeliveryTeam, "Delivery team", fixedField, draft.DeliveryTeam, nil))
		}
		d.fields = append(d.fields,
			newField(form.FieldStartDate, "Start date", dateField, draftDate(draft, form.FieldStartDate), nil),
			newField(form.FieldEndDate, "End date", dateField, draftDate(draft, form.FieldEndDate), nil),
		)
	}
	d.fields[0].input.Focus()
	return d
}

func titleFor(v form.Variant) string {
	switch v {
	case form.CreateDemand:
		return "New demand"
	case form.UpdateDemand:
		return "Update demand"
	case form.CreateAllocation:
		return "Allocate delivery team"
	default:
		return "Update allocation"
	}
}

func (d *formDialog) move(dir int) {
	d.fields[d.focus].input.Blur()
	n := len(d.fields)
	for i := 0; i < n; i++ {
		d.focus = (d.focus + dir + n) % n
		if d.fields[d.focus].kind != fixedField {
			break
		}
	}
	d.fields[d.focus].input.Focus()
}

// update handles one key. The session is closed by a valid submit; the
// caller sends d.sub.
func (d *formDialog) update(msg tea.KeyMsg) (dialogOutcome, tea.Cmd) {
	f := d.fields[d.focus]
	switch msg.String() {
	case "esc":
		d.session.Cancel()
		return dialogCancelled, nil
	case "enter":
		return d.submit(), nil
	case "tab":
		if f.kind == choiceField && len(f.matches) > 0 && f.input.Value() != "" {
			f.input.SetValue(f.matches[f.sel])
			f.refilter()
		}
		d.move(1)
		return dialogOpen, nil
	case "shift+tab":
		d.move(-1)
		return dialogOpen, nil
	case "up":
		if f.kind == choiceField && f.sel > 0 {
			f.sel--
			f.picked = true
			return dialogOpen, nil
		}
		d.move(-1)
		return dialogOpen, nil
	case "down":
		if f.kind == choiceField && len(f.matches) > 0 && !f.picked {
			f.picked = true
			return dialogOpen, nil
		}
		if f.kind == choiceField && f.sel < len(f.matches)-1 {
			f.sel++
			return dialogOpen, nil
		}
		d.move(1)
		return dialogOpen, nil
	}
	if f.kind == fixedField {
		return dialogOpen, nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	f.sel = 0
	f.picked = false
	f.refilter()
	return dialogOpen, cmd
}

// submit copies the fields into the draft and asks the session to validate.
// Unparseable dates are left unset so they fail as missing.
func (d *formDialog) submit() dialogOutcome {
	for _, f := range d.fields {
		f.err = ""
	}
	_ = d.session.Edit(func(dr *form.Draft) {
		for _, f := range d.fields {
			v := f.value()
			switch f.key {
			case form.FieldDescription:
				dr.Description = v
			case form.FieldCounterparty:
				dr.Counterparty = v
			case form.FieldAmount:
				dr.Amount = v
			case form.FieldDeliveryTeam:
				dr.DeliveryTeam = v
			case form.FieldStartDate, form.FieldEndDate:
				t, err := form.ParseDate(v)
				if err != nil && v != "" {
					f.err = "use DD/MM/YYYY"
				}
				if f.key == form.FieldStartDate {
					dr.StartDate = t
				} else {
					dr.EndDate = t
				}
			}
		}
	})

	sub, err := d.session.Submit()
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		for _, f := range d.fields {
			if msg, ok := verr.Fields[f.key]; ok && f.err == "" {
				f.err = msg
			}
		}
		return dialogOpen
	}
	if err != nil {
		return dialogOpen
	}
	d.sub = sub
	return dialogSubmitted
}

func (d *formDialog) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.title))
	b.WriteString("\n")
	if budget := d.session.Input().Budget; budget != "" {
		b.WriteString(mutedStyle.Render("Remaining budget: " + budget))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i, f := range d.fields {
		if f.kind == fixedField {
			b.WriteString(f.input.Prompt + mutedStyle.Render(f.input.Value()))
		} else {
			b.WriteString(f.input.View())
		}
		b.WriteString("\n")
		if f.err != "" {
			b.WriteString("  " + errorStyle.Render(f.err) + "\n")
		}
		if f.kind == choiceField && i == d.focus {
			for j, m := range f.matches {
				if j == maxMatches {
					b.WriteString(mutedStyle.Render(fmt.Sprintf("    +%d more", len(f.matches)-maxMatches)) + "\n")
					break
				}
				marker := "  "
				if f.picked && j == f.sel {
					marker = cursorStyle.Render("▶ ")
				}
				b.WriteString("  " + marker + m + "\n")
			}
		}
	}
	if d.session.FormError() {
		b.WriteString("\n" + errorStyle.Render("Fix the highlighted fields."))
	}
	b.WriteString("\n" + mutedStyle.Render("[enter] Submit  [tab] Next  [esc] Cancel"))
	return b.String()
}

// messageDialog shows one mutation result until dismissed.
type messageDialog struct {
	title  string
	body   string
	failed bool
}

func newMessageDialog(v form.Variant, r api.Result) *messageDialog {
	return &messageDialog{title: titleFor(v), body: r.Message(), failed: r.Failed()}
}

func (m *messageDialog) view() string {
	head := successStyle.Render(m.title)
	if m.failed {
		head = errorStyle.Render(m.title + " failed")
	}
	return head + "\n\n" + strings.TrimRight(m.body, "\n") + "\n\n" + mutedStyle.Render("[any key] Close")
}
