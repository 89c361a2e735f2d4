package domain

import (
	"time"
)

// Saga step status constants.
const (
	SagaStepPending     = "pending"
	SagaStepCompleted   = "completed"
	SagaStepFailed      = "failed"
	SagaStepCompensated = "compensated"
)

// Saga step names for checkout, in execution order.
const (
	SagaStepCreateOrder      = "create_order"
	SagaStepInsertOrderItems = "insert_order_items"
	SagaStepClearCart        = "clear_cart"
)

// SagaStep tracks the execution status of a single checkout step.
type SagaStep struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
}

// NewSagaStep creates a step in the pending state.
func NewSagaStep(name string) SagaStep {
	return SagaStep{
		Name:   name,
		Status: SagaStepPending,
	}
}

// Complete marks the step as done.
func (s *SagaStep) Complete() {
	s.Status = SagaStepCompleted
	s.ExecutedAt = time.Now().UTC()
}

// Fail marks the step as failed with the given error message.
func (s *SagaStep) Fail(err string) {
	s.Status = SagaStepFailed
	s.Error = err
	s.ExecutedAt = time.Now().UTC()
}

// Compensate marks the step as rolled back.
func (s *SagaStep) Compensate() {
	s.Status = SagaStepCompensated
	s.ExecutedAt = time.Now().UTC()
}

// Saga is the ordered step log of one checkout.
type Saga struct {
	Steps []SagaStep `json:"steps"`
}

// NewCheckoutSaga returns a saga with every checkout step pending.
func NewCheckoutSaga() *Saga {
	return &Saga{Steps: []SagaStep{
		NewSagaStep(SagaStepCreateOrder),
		NewSagaStep(SagaStepInsertOrderItems),
		NewSagaStep(SagaStepClearCart),
	}}
}

// Step returns the named step, or nil.
func (s *Saga) Step(name string) *SagaStep {
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return &s.Steps[i]
		}
	}
	return nil
}
