package checkout

import (
	"fmt"

	"github.com/sakara-commerce/storefront/internal/domain"
)

// Step names one stage of the checkout flow.
type Step string

const (
	// StepContact collects the purchaser's contact details.
	StepContact Step = "contact"
	// StepAddress collects the shipping destination and address.
	StepAddress Step = "address"
	// StepDelivery selects the shipping method.
	StepDelivery Step = "delivery"
	// StepPayment selects the payment channel and completes the order.
	StepPayment Step = "payment"
)

// stepOrder fixes the forward sequence of the checkout flow.
var stepOrder = []Step{StepContact, StepAddress, StepDelivery, StepPayment}

// StepStatus is the derived status of one step.
type StepStatus string

const (
	// StatusPending means the step has not been reached yet.
	StatusPending StepStatus = "pending"
	// StatusCurrent means the step is the one the customer is working on.
	StatusCurrent StepStatus = "current"
	// StatusCompleted means the step's requirement is satisfied.
	StatusCompleted StepStatus = "completed"
)

// StepMachine tracks checkout progress. Status is always a function of the
// current pointer, the completed set, and the order snapshot; the two are
// reconciled via Rederive whenever the snapshot changes, so client tracking
// can never drift from server state.
type StepMachine struct {
	current   Step
	completed map[Step]bool
}

// NewStepMachine derives the initial machine state from the order snapshot.
// Steps whose server-side precondition already holds start out completed.
func NewStepMachine(order *domain.Order) *StepMachine {
	m := &StepMachine{completed: make(map[Step]bool, len(stepOrder))}
	m.current = initialStep(order)
	for _, step := range stepOrder {
		if step == m.current {
			break
		}
		m.completed[step] = true
	}
	return m
}

func initialStep(order *domain.Order) Step {
	switch {
	case !order.HasCustomer():
		return StepContact
	case !order.HasShippingAddress():
		return StepAddress
	case !order.HasShippingLine():
		return StepDelivery
	default:
		return StepPayment
	}
}

// Current returns the step the customer is on, empty when checkout finished.
func (m *StepMachine) Current() Step {
	return m.current
}

// Status derives the status of the given step. The current pointer wins over
// the completed set so a re-entered step reports current, never completed;
// exactly one step is current until checkout finishes.
func (m *StepMachine) Status(step Step) StepStatus {
	if step == m.current {
		return StatusCurrent
	}
	if m.completed[step] {
		return StatusCompleted
	}
	return StatusPending
}

// Complete marks the step completed and advances the current pointer to the
// next step in the fixed order. Advancing past payment is a no-op.
func (m *StepMachine) Complete(step Step) {
	m.completed[step] = true
	if step != m.current {
		return
	}
	m.advance()
}

// GoTo re-enters a previously completed step. Later completed steps stay
// completed; the server may naturally invalidate them through subsequent
// mutations.
func (m *StepMachine) GoTo(step Step) error {
	if !m.completed[step] {
		return fmt.Errorf("checkout: step %s is not completed", step)
	}
	m.current = step
	return nil
}

// Rederive reconciles step state with a fresh order snapshot: steps whose
// server-side precondition now holds are marked completed even if Complete
// was never called for them. Runs synchronously with every snapshot refresh.
func (m *StepMachine) Rederive(order *domain.Order) {
	if order == nil {
		return
	}
	if order.HasCustomer() {
		m.completed[StepContact] = true
	}
	if order.HasShippingAddress() {
		m.completed[StepAddress] = true
	}
	if order.HasShippingLine() {
		m.completed[StepDelivery] = true
	}
	if m.current != "" && m.completed[m.current] {
		m.advance()
	}
}

func (m *StepMachine) advance() {
	idx := stepIndex(m.current)
	if idx < 0 {
		return
	}
	for i := idx + 1; i < len(stepOrder); i++ {
		if !m.completed[stepOrder[i]] {
			m.current = stepOrder[i]
			return
		}
	}
	// Every remaining step is completed; checkout is finished.
	m.current = ""
}

func stepIndex(step Step) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// Steps returns the fixed forward order of the checkout flow.
func Steps() []Step {
	out := make([]Step, len(stepOrder))
	copy(out, stepOrder)
	return out
}
