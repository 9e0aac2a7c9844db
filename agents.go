package buildingagents

import (
	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/guardrail"
)

// Agent names.
const (
	TriageAgentName             = "Triage Agent"
	FAQAgentName                = "FAQ Agent"
	ProjectInformationAgentName = "Project Information Agent"
	CostEstimationAgentName     = "Cost Estimation Agent"
	ProjectStatusAgentName      = "Project Status Agent"
	AppointmentBookingAgentName = "Appointment Booking Agent"
)

// Handoff transition hook names, surfaced to clients as synthetic tool_call
// events on the target agent.
const (
	onCostEstimationHandoff = "on_cost_estimation_handoff"
	onAppointmentHandoff    = "on_appointment_handoff"
)

const promptPrefix = `# System context
You are one agent of a multi-agent customer service system for ERNI Gruppe, a Swiss timber
construction company in Schongau (Guggibadstrasse 8, 6288 Schongau, phone 041 570 70 70).
Transfers between agents happen through transfer tool calls; they are invisible to the
customer, so never mention them. If a request is outside your specialty, transfer the
conversation to the agent responsible for it. Answer in the language the customer writes in.

`

var defaultGuardrails = []string{
	guardrail.RelevanceGuardrailName,
	guardrail.JailbreakGuardrailName,
}

// seedInquiryID assigns an inquiry id the first time a customer reaches an
// agent that tracks inquiries.
func seedInquiryID(pc *core.ProjectContext) {
	pc.EnsureInquiryID()
}

// Agents returns the complete agent catalog with its handoff graph. The
// Triage Agent is the entry point; every specialist can hand back to it.
func Agents() []*core.AgentDescriptor {
	triage := &core.AgentDescriptor{
		Name:        TriageAgentName,
		Description: "Main routing agent that directs customers to the appropriate specialist.",
		Instructions: promptPrefix + `You are the first contact for ERNI customers. Greet them, find out what
they need and transfer them to the right specialist:
- general questions about ERNI, timber or certifications: FAQ Agent
- the building process and ERNI's services: Project Information Agent
- price or budget questions: Cost Estimation Agent
- status of a running project: Project Status Agent
- booking a consultation: Appointment Booking Agent
Do not answer specialist questions yourself.`,
		Handoffs: []core.Handoff{
			{Target: ProjectInformationAgentName},
			{Target: CostEstimationAgentName, OnTransition: onCostEstimationHandoff, Transition: seedInquiryID},
			{Target: ProjectStatusAgentName},
			{Target: AppointmentBookingAgentName, OnTransition: onAppointmentHandoff, Transition: seedInquiryID},
			{Target: FAQAgentName},
		},
		InputGuardrails: defaultGuardrails,
	}

	faq := &core.AgentDescriptor{
		Name:        FAQAgentName,
		Description: "Answers frequently asked questions about ERNI and building with timber.",
		Instructions: promptPrefix + `You answer frequently asked questions about ERNI Gruppe and building with
timber. Always look the answer up with the faq_lookup_building tool instead of relying on your
own knowledge. If the customer needs anything beyond FAQs, transfer back to the Triage Agent.`,
		Handoffs:        []core.Handoff{{Target: TriageAgentName}},
		Tools:           []string{"faq_lookup_building"},
		InputGuardrails: defaultGuardrails,
	}

	projectInfo := &core.AgentDescriptor{
		Name:        ProjectInformationAgentName,
		Description: "Provides general information about ERNI's building process and services.",
		Instructions: promptPrefix + `You explain ERNI's building process (planning, production, assembly,
finishing) and its services: Planung, Holzbau, Spenglerei, Ausbau, Realisation and Agrar. Use the
faq_lookup_building tool for factual details. Transfer price questions to the Cost Estimation
Agent, booking requests to the Appointment Booking Agent, anything else back to the Triage Agent.`,
		Handoffs: []core.Handoff{
			{Target: TriageAgentName},
			{Target: CostEstimationAgentName, OnTransition: onCostEstimationHandoff, Transition: seedInquiryID},
			{Target: AppointmentBookingAgentName, OnTransition: onAppointmentHandoff, Transition: seedInquiryID},
		},
		Tools:           []string{"faq_lookup_building"},
		InputGuardrails: defaultGuardrails,
	}

	costEstimation := &core.AgentDescriptor{
		Name:        CostEstimationAgentName,
		Description: "Provides preliminary cost estimates for building projects.",
		Instructions: promptPrefix + `You prepare preliminary cost estimates. Current inquiry:
{{default "[unknown]" .inquiry_id}}. Ask for the project type (Einfamilienhaus, Mehrfamilienhaus,
Agrar or Renovation), the area in m² and the construction type (Holzbau or Systembau), then call
estimate_project_cost. Make clear the estimate is preliminary and recommend an architect
consultation; offer to transfer to the Appointment Booking Agent for that.`,
		Handoffs: []core.Handoff{
			{Target: TriageAgentName},
			{Target: AppointmentBookingAgentName, OnTransition: onAppointmentHandoff, Transition: seedInquiryID},
		},
		Tools:           []string{"estimate_project_cost"},
		InputGuardrails: defaultGuardrails,
	}

	projectStatus := &core.AgentDescriptor{
		Name:        ProjectStatusAgentName,
		Description: "Provides status updates for ongoing building projects.",
		Instructions: promptPrefix + `You report the status of running building projects. Current project
number: {{default "[unknown]" .project_number}}. Ask for the project number (format YYYY-NNN) and
call get_project_status. For questions about the building process itself, transfer to the Project
Information Agent; otherwise back to the Triage Agent.`,
		Handoffs: []core.Handoff{
			{Target: TriageAgentName},
			{Target: ProjectInformationAgentName},
		},
		Tools:           []string{"get_project_status"},
		InputGuardrails: defaultGuardrails,
	}

	appointmentBooking := &core.AgentDescriptor{
		Name:        AppointmentBookingAgentName,
		Description: "Books consultations with ERNI specialists.",
		Instructions: promptPrefix + `You book consultations with ERNI specialists (Architekt,
Holzbau-Ingenieur or Bauleiter). Current inquiry: {{default "[unknown]" .inquiry_id}}. Consultation
already booked: {{.consultation_booked}}. First check availability with
check_specialist_availability, then collect the customer's name, email and phone number and call
book_consultation. Confirm the booking details afterwards.`,
		Handoffs:        []core.Handoff{{Target: TriageAgentName}},
		Tools:           []string{"check_specialist_availability", "book_consultation"},
		InputGuardrails: defaultGuardrails,
	}

	return []*core.AgentDescriptor{
		triage,
		faq,
		projectInfo,
		costEstimation,
		projectStatus,
		appointmentBooking,
	}
}
