package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Field names used as keys in ValidationError.Fields.
const (
	FieldDescription  = "Description"
	FieldCounterparty = "Counterparty"
	FieldAmount       = "Amount"
	FieldStartDate    = "StartDate"
	FieldEndDate      = "EndDate"
	FieldDeliveryTeam = "DeliveryTeam"
)

var labels = map[string]string{
	FieldDescription:  "description",
	FieldCounterparty: "counterparty",
	FieldAmount:       "amount",
	FieldStartDate:    "start date",
	FieldEndDate:      "end date",
	FieldDeliveryTeam: "delivery team",
}

// ErrInvalid is wrapped by every ValidationError.
var ErrInvalid = errors.New("form input invalid")

// ValidationError lists the fields that blocked a submit.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, k := range names {
		msgs = append(msgs, e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

var validate = validator.New(validator.WithRequiredStructEnabled())

type createDemandFields struct {
	Description  string `validate:"required"`
	Counterparty string `validate:"required"`
}

type updateDemandFields struct {
	Amount    string     `validate:"required,number"`
	StartDate *time.Time `validate:"required"`
	EndDate   *time.Time `validate:"required"`
}

type allocationFields struct {
	Amount       string     `validate:"required,number"`
	DeliveryTeam string     `validate:"required"`
	StartDate    *time.Time `validate:"required"`
	EndDate      *time.Time `validate:"required"`
}

func datePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fieldsFor(v Variant, d Draft) any {
	switch v {
	case CreateDemand:
		return createDemandFields{
			Description:  strings.TrimSpace(d.Description),
			Counterparty: strings.TrimSpace(d.Counterparty),
		}
	case UpdateDemand:
		return updateDemandFields{
			Amount:    strings.TrimSpace(d.Amount),
			StartDate: datePtr(d.StartDate),
			EndDate:   datePtr(d.EndDate),
		}
	default:
		return allocationFields{
			Amount:       strings.TrimSpace(d.Amount),
			DeliveryTeam: strings.TrimSpace(d.DeliveryTeam),
			StartDate:    datePtr(d.StartDate),
			EndDate:      datePtr(d.EndDate),
		}
	}
}

// check returns one message per failing field, or nil.
func check(v Variant, d Draft) map[string]string {
	err := validate.Struct(fieldsFor(v, d))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		label := labels[fe.Field()]
		switch fe.Tag() {
		case "number":
			out[fe.Field()] = label + " must be a whole number"
		default:
			out[fe.Field()] = label + " is required"
		}
	}
	return out
}
