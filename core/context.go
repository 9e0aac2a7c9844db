package core

import (
	"fmt"
	"math/rand"
)

// ProjectContext is the flat record of facts accumulated about an ongoing
// building inquiry. It is owned by the conversation state and mutated only as
// a side effect of tool execution during an agent turn; guardrails, the
// registry and the event translator never touch it.
type ProjectContext struct {
	CustomerName       *string  `json:"customer_name"`
	CustomerEmail      *string  `json:"customer_email"`
	CustomerPhone      *string  `json:"customer_phone"`
	ProjectNumber      *string  `json:"project_number"`
	ProjectType        *string  `json:"project_type"`
	ConstructionType   *string  `json:"construction_type"`
	AreaSqm            *float64 `json:"area_sqm"`
	Location           *string  `json:"location"`
	BudgetCHF          *float64 `json:"budget_chf"`
	PreferredStartDate *string  `json:"preferred_start_date"`
	ConsultationBooked bool     `json:"consultation_booked"`
	SpecialistAssigned *string  `json:"specialist_assigned"`
	InquiryID          *string  `json:"inquiry_id"`
}

// NewProjectContext returns a fresh context seeded with a generated inquiry
// identifier. In production the inquiry id would come from the CRM.
func NewProjectContext() *ProjectContext {
	ctx := &ProjectContext{}
	ctx.EnsureInquiryID()
	return ctx
}

// EnsureInquiryID assigns a generated inquiry id if none is present. Handoff
// transition hooks use this to guarantee downstream agents see an id.
func (c *ProjectContext) EnsureInquiryID() {
	if c.InquiryID == nil {
		id := fmt.Sprintf("INQ-%05d", 10000+rand.Intn(90000))
		c.InquiryID = &id
	}
}

// Clone returns an independent copy of the context.
func (c *ProjectContext) Clone() *ProjectContext {
	clone := *c
	clone.CustomerName = clonePtr(c.CustomerName)
	clone.CustomerEmail = clonePtr(c.CustomerEmail)
	clone.CustomerPhone = clonePtr(c.CustomerPhone)
	clone.ProjectNumber = clonePtr(c.ProjectNumber)
	clone.ProjectType = clonePtr(c.ProjectType)
	clone.ConstructionType = clonePtr(c.ConstructionType)
	clone.AreaSqm = clonePtr(c.AreaSqm)
	clone.Location = clonePtr(c.Location)
	clone.BudgetCHF = clonePtr(c.BudgetCHF)
	clone.PreferredStartDate = clonePtr(c.PreferredStartDate)
	clone.SpecialistAssigned = clonePtr(c.SpecialistAssigned)
	clone.InquiryID = clonePtr(c.InquiryID)
	return &clone
}

// AsMap renders the context as the flat key/value map exposed to clients.
// Unset optional fields appear as nil so the wire shape is stable across
// turns.
func (c *ProjectContext) AsMap() map[string]any {
	return map[string]any{
		"customer_name":        ptrVal(c.CustomerName),
		"customer_email":       ptrVal(c.CustomerEmail),
		"customer_phone":       ptrVal(c.CustomerPhone),
		"project_number":       ptrVal(c.ProjectNumber),
		"project_type":         ptrVal(c.ProjectType),
		"construction_type":    ptrVal(c.ConstructionType),
		"area_sqm":             ptrVal(c.AreaSqm),
		"location":             ptrVal(c.Location),
		"budget_chf":           ptrVal(c.BudgetCHF),
		"preferred_start_date": ptrVal(c.PreferredStartDate),
		"consultation_booked":  c.ConsultationBooked,
		"specialist_assigned":  ptrVal(c.SpecialistAssigned),
		"inquiry_id":           ptrVal(c.InquiryID),
	}
}

// Diff compares the context against a pre-turn snapshot (as produced by
// AsMap) and returns only the fields whose values changed, mapped to their
// new values.
func (c *ProjectContext) Diff(snapshot map[string]any) map[string]any {
	current := c.AsMap()
	changes := map[string]any{}
	for key, val := range current {
		if snapshot[key] != val {
			changes[key] = val
		}
	}
	return changes
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptrVal[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
