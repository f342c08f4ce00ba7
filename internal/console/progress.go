package console

import (
	"errors"
	"fmt"

	"github.com/roelfdiedericks/aiorch/internal/llm"
)

// Progress prints one line per router attempt. It implements llm.Observer.
// Candidates skipped for missing credentials are not shown.
type Progress struct {
	p *Printer
}

var _ llm.Observer = (*Progress)(nil)

// NewProgress returns a progress observer printing through p.
func NewProgress(p *Printer) *Progress {
	return &Progress{p: p}
}

// AttemptStarted implements llm.Observer.
func (o *Progress) AttemptStarted(_ int, model llm.ModelDescriptor, fallback bool) {
	label := o.p.model
	if fallback {
		label = o.p.warn
	}
	fmt.Fprintln(o.p.out, Margin+label.Render("["+model.DisplayName()+"]:")+" "+o.p.dim.Render("thinking..."))
}

// AttemptFinished implements llm.Observer.
func (o *Progress) AttemptFinished(a llm.Attempt) {
	name := a.Model.DisplayName()
	switch a.Kind {
	case llm.FailureRateLimited:
		o.p.Warn(name + " rate limited, trying next...")
	case llm.FailureRequest:
		o.p.Error(fmt.Sprintf("error in %s: %s", name, attemptDetail(a.Err)))
	}
}

func attemptDetail(err error) string {
	var ae *llm.AdapterError
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
