package domain

import (
	"errors"
	"fmt"
)

// Outcome es el resultado de una operacion sobre una sola entidad.
type Outcome struct {
	Kind    string // role | channel | overwrite | invite
	ID      string
	Name    string
	Skipped bool
	Err     error
}

// Report agrega los outcomes de un loop best-effort (lockdown, restore).
type Report struct {
	Op       string
	Outcomes []Outcome
}

func (r *Report) Add(o Outcome) { r.Outcomes = append(r.Outcomes, o) }

func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && !o.Skipped {
			n++
		}
	}
	return n
}

func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

func (r Report) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}

// Err junta todos los errores; nil si todo salio bien.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s %s (%s): %w", o.Kind, o.ID, o.Name, o.Err))
	}
	return errors.Join(errs...)
}

func (r Report) Summary() string {
	return fmt.Sprintf("%s: %d ok, %d fallidos, %d omitidos", r.Op, r.Succeeded(), len(r.Failed()), r.Skipped())
}
