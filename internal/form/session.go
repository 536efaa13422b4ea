// Package form implements the short-lived form sessions behind each modal
// dialog: a draft, submit-time validation, and a single mutation whose
// result is reported once and followed by a refresh of every collection.
package form

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/api"
)

// Variant selects the field set and the mutation a session issues.
type Variant int

const (
	CreateDemand Variant = iota
	UpdateDemand
	CreateAllocation
	UpdateAllocation
)

func (v Variant) String() string {
	switch v {
	case CreateDemand:
		return "create demand"
	case UpdateDemand:
		return "update demand"
	case CreateAllocation:
		return "allocate delivery team"
	case UpdateAllocation:
		return "update allocation"
	default:
		return "unknown"
	}
}

// State of a session. Closed and Cancelled are terminal.
type State int

const (
	Editing State = iota
	Submitting
	Closed
	Cancelled
)

func (s State) String() string {
	return [...]string{"editing", "submitting", "closed", "cancelled"}[s]
}

// ErrNotEditing is returned when a closed or cancelled session is touched.
var ErrNotEditing = errors.New("form session is not editing")

// Draft is the user's input. Zero dates mean "not entered".
type Draft struct {
	Description  string
	Counterparty string
	Amount       string
	StartDate    time.Time
	EndDate      time.Time
	DeliveryTeam string
}

// Input is the fixed bundle a dialog is opened with.
type Input struct {
	// TargetID is the demand, project or allocation the form acts on.
	TargetID string
	// Choices feeds the counterparty or delivery-team picker.
	Choices []string
	// Prior is the record being edited, if any.
	Prior api.Record
	// Budget is shown read-only on allocation forms.
	Budget string
	// Initial pre-populates the draft.
	Initial Draft
}

type Mutator interface {
	Mutate(ctx context.Context, m api.Mutation) api.Result
}

type Refresher interface {
	RefreshAll(ctx context.Context)
}

// Messages shows a mutation result once.
type Messages interface {
	ShowResult(v Variant, r api.Result)
}

// Deps are the collaborators shared by every session of one client.
type Deps struct {
	Mutator   Mutator
	Refresher Refresher
	Messages  Messages
	Log       *logrus.Logger
}

// Session is one open dialog.
type Session struct {
	variant   Variant
	input     Input
	deps      Deps
	onClose   func()
	state     State
	draft     Draft
	formError bool
	fieldErrs map[string]string
}

// New opens a session in Editing. onClose runs when a valid submit closes
// the dialog; it may be nil.
func New(v Variant, in Input, deps Deps, onClose func()) *Session {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Session{
		variant: v,
		input:   in,
		deps:    deps,
		onClose: onClose,
		draft:   in.Initial,
	}
}

func (s *Session) Variant() Variant { return s.variant }
func (s *Session) Input() Input     { return s.input }
func (s *Session) State() State     { return s.state }
func (s *Session) Draft() Draft     { return s.draft }

// FormError reports whether the last submit attempt was rejected.
func (s *Session) FormError() bool { return s.formError }

// FieldErrors returns the messages from the last rejected submit.
func (s *Session) FieldErrors() map[string]string { return s.fieldErrs }

// Edit applies fn to the draft while the session is editing.
func (s *Session) Edit(fn func(d *Draft)) error {
	if s.state != Editing {
		return ErrNotEditing
	}
	fn(&s.draft)
	return nil
}

// Cancel dismisses the dialog without issuing anything.
func (s *Session) Cancel() {
	if s.state == Editing {
		s.state = Cancelled
	}
}

// Submit validates the draft. On failure the session stays in Editing with
// the error flag set and a *ValidationError is returned. On success the
// dialog is closed before anything is sent and the prepared submission is
// returned; call Send to issue it.
func (s *Session) Submit() (*Submission, error) {
	if s.state != Editing {
		return nil, ErrNotEditing
	}
	if errs := check(s.variant, s.draft); len(errs) > 0 {
		s.formError = true
		s.fieldErrs = errs
		return nil, &ValidationError{Fields: errs}
	}
	s.formError = false
	s.fieldErrs = nil

	s.state = Submitting
	sub := &Submission{
		variant:  s.variant,
		mutation: s.mutation(),
		deps:     s.deps,
	}
	s.state = Closed
	if s.onClose != nil {
		s.onClose()
	}
	return sub, nil
}

func (s *Session) mutation() api.Mutation {
	d := s.draft
	amount := strings.TrimSpace(d.Amount)
	start, end := FormatDate(d.StartDate), FormatDate(d.EndDate)
	switch s.variant {
	case CreateDemand:
		return api.CreateDemand(strings.TrimSpace(d.Counterparty), strings.TrimSpace(d.Description))
	case UpdateDemand:
		return api.UpdateDemand(amount, start, end, s.input.TargetID)
	case CreateAllocation:
		return api.AllocateDeliveryTeam(amount, start, end, s.input.TargetID, strings.TrimSpace(d.DeliveryTeam))
	default:
		return api.UpdateAllocation(amount, start, end, s.input.TargetID)
	}
}

// Submission is a validated mutation waiting to be sent.
type Submission struct {
	variant  Variant
	mutation api.Mutation
	deps     Deps

	once   sync.Once
	result api.Result
}

func (s *Submission) Mutation() api.Mutation { return s.mutation }

// Send issues the mutation once, reports the result, and then refreshes
// every collection whatever the outcome. Later calls return the first
// result without sending again.
func (s *Submission) Send(ctx context.Context) api.Result {
	s.once.Do(func() {
		res := s.deps.Mutator.Mutate(ctx, s.mutation)
		entry := s.deps.Log.WithFields(logrus.Fields{
			"form":   s.variant.String(),
			"status": res.Status,
		})
		if res.Failed() {
			entry.WithError(res.Err).Warn("mutation rejected")
		} else {
			entry.Info("mutation accepted")
		}
		if s.deps.Messages != nil {
			s.deps.Messages.ShowResult(s.variant, res)
		}
		if s.deps.Refresher != nil {
			s.deps.Refresher.RefreshAll(ctx)
		}
		s.result = res
	})
	return s.result
}
