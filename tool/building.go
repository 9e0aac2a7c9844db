package tool

import (
	"fmt"
	"sort"
	"strings"
)

// Project and construction types supported by the service.
const (
	ProjectEinfamilienhaus  = "Einfamilienhaus"
	ProjectMehrfamilienhaus = "Mehrfamilienhaus"
	ProjectAgrar            = "Agrar"
	ProjectRenovation       = "Renovation"

	ConstructionHolzbau   = "Holzbau"
	ConstructionSystembau = "Systembau"
)

// ProjectRecord is one entry of the mock project ledger served by the
// project status tool. In production this would come from the CRM/ERP.
type ProjectRecord struct {
	Type          string `yaml:"type" json:"type"`
	Location      string `yaml:"location" json:"location"`
	Stage         string `yaml:"stage" json:"stage"`
	Progress      int    `yaml:"progress" json:"progress"`
	NextMilestone string `yaml:"next_milestone" json:"next_milestone"`
	Responsible   string `yaml:"responsible" json:"responsible"`
}

// BusinessData holds the mock business tables backing the tools: base prices
// per project and construction type (CHF per m²), specialists by type,
// bookable time slots and the project ledger.
type BusinessData struct {
	Pricing     map[string]map[string]float64 `yaml:"pricing" json:"pricing"`
	Specialists map[string][]string           `yaml:"specialists" json:"specialists"`
	TimeSlots   []string                      `yaml:"time_slots" json:"time_slots"`
	Projects    map[string]ProjectRecord      `yaml:"projects" json:"projects"`
}

// DefaultBusinessData returns the built-in tables used when no configuration
// file overrides them.
func DefaultBusinessData() BusinessData {
	return BusinessData{
		Pricing: map[string]map[string]float64{
			ProjectEinfamilienhaus:  {ConstructionHolzbau: 3000, ConstructionSystembau: 2500},
			ProjectMehrfamilienhaus: {ConstructionHolzbau: 2800, ConstructionSystembau: 2300},
			ProjectAgrar:            {ConstructionHolzbau: 2000, ConstructionSystembau: 1800},
			ProjectRenovation:       {ConstructionHolzbau: 1500, ConstructionSystembau: 1200},
		},
		Specialists: map[string][]string{
			"Architekt":        {"André Arnold", "Stefan Gisler"},
			"Holzbau-Ingenieur": {"Andreas Wermelinger", "Tobias Wili"},
			"Bauleiter":        {"Wolfgang Reinsch", "Marco Kaiser"},
		},
		TimeSlots: []string{"09:00-10:00", "14:00-15:00", "16:00-17:00"},
		Projects: map[string]ProjectRecord{
			"2024-156": {
				Type: ProjectEinfamilienhaus, Location: "Muri", Stage: "Production",
				Progress: 75, NextMilestone: "Assembly 15-19 May 2025", Responsible: "Tobias Wili",
			},
			"2024-089": {
				Type: ProjectMehrfamilienhaus, Location: "Schongau", Stage: "Planning",
				Progress: 40, NextMilestone: "Building permit submission 10 June 2025", Responsible: "André Arnold",
			},
			"2023-234": {
				Type: ProjectAgrar, Location: "Hochdorf", Stage: "Completed",
				Progress: 100, NextMilestone: "Final inspection completed", Responsible: "Stefan Gisler",
			},
		},
	}
}

// NewBuildingTools returns every business tool wired to the given tables.
func NewBuildingTools(data BusinessData) []Tool {
	return []Tool{
		NewFAQLookupTool(),
		NewEstimateProjectCostTool(data),
		NewCheckSpecialistAvailabilityTool(data),
		NewBookConsultationTool(),
		NewGetProjectStatusTool(data),
	}
}

// NewFAQLookupTool answers frequently asked questions about building with
// timber by keyword match over the question text.
func NewFAQLookupTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string", "description": "The customer's question"},
		},
		"required": []string{"question"},
	}
	return NewFunctionTool(
		"faq_lookup_building",
		"Lookup frequently asked questions about building and construction.",
		schema,
		func(tc *Context, args map[string]any) (string, error) {
			q := strings.ToLower(stringArg(args, "question"))
			switch {
			case containsAny(q, "holz", "wood", "timber", "material"):
				return "Wood is the ideal building material: ecological, renewable, grown in Swiss forests, " +
					"with excellent thermal insulation and a healthy indoor climate. Assembly is fast thanks " +
					"to prefabrication. ERNI is a certified Minergie partner.", nil
			case containsAny(q, "zeit", "time", "dauer", "duration"):
				return "Typical timelines: planning 2-3 months, production 4-6 weeks, assembly 2-4 weeks, " +
					"finishing 4-8 weeks. Total duration for a single-family house is 6-9 months; on-site " +
					"assembly takes only a few weeks thanks to prefabrication.", nil
			case containsAny(q, "minergie", "certificate", "zertifikat"):
				return "ERNI certifications: Minergie-Fachpartner Gebäudehülle and Holzbau Plus. Minergie is " +
					"the Swiss standard for energy efficiency; Minergie houses consume 80% less energy.", nil
			case containsAny(q, "garantie", "warranty"):
				return "Warranties: construction 5 years, roof 5 years, windows and doors 2 years, plus " +
					"regular maintenance through the Dachservice.", nil
			case containsAny(q, "preis", "cost", "price", "kosten"):
				return "For a detailed cost estimate we need the project type, the area in m², the " +
					"construction type and the location. A preliminary estimate or an architect consultation " +
					"can be arranged.", nil
			case containsAny(q, "service", "wartung", "maintenance"):
				return "Services: planning & architecture, timber construction (Holzbau), roofing & sheet " +
					"metal work (Spenglerei), interior finishing (Ausbau), general contracting (Realisation) " +
					"and agricultural buildings (Agrar). Everything under one roof.", nil
			}
			return "I'm sorry, I don't have an answer to that specific question. " +
				"Would you like to speak with one of our consultants?", nil
		},
	)
}

// NewEstimateProjectCostTool computes a preliminary cost estimate and records
// the project parameters in the conversation context.
func NewEstimateProjectCostTool(data BusinessData) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"project_type":      map[string]any{"type": "string", "description": "Einfamilienhaus, Mehrfamilienhaus, Agrar or Renovation"},
			"area_sqm":          map[string]any{"type": "number", "description": "Area in square meters"},
			"construction_type": map[string]any{"type": "string", "description": "Holzbau or Systembau"},
		},
		"required": []string{"project_type", "area_sqm", "construction_type"},
	}
	return NewFunctionTool(
		"estimate_project_cost",
		"Provide a preliminary cost estimate for a building project.",
		schema,
		func(tc *Context, args map[string]any) (string, error) {
			projectType := stringArg(args, "project_type")
			constructionType := stringArg(args, "construction_type")
			area, ok := floatArg(args, "area_sqm")
			if !ok || area <= 0 {
				return "Invalid area: area must be greater than 0 m². Please provide a valid project area.", nil
			}

			perType, ok := data.Pricing[projectType]
			if !ok {
				return fmt.Sprintf("Unknown project type %q. Valid project types are: %s.",
					projectType, strings.Join(sortedKeys(data.Pricing), ", ")), nil
			}
			pricePerSqm, ok := perType[constructionType]
			if !ok {
				return fmt.Sprintf("Unknown construction type %q for %s. Valid construction types are: %s.",
					constructionType, projectType, strings.Join(sortedKeys(perType), ", ")), nil
			}

			estimated := area * pricePerSqm
			maxCost := estimated * 1.25

			tc.Project.ProjectType = &projectType
			tc.Project.ConstructionType = &constructionType
			tc.Project.AreaSqm = &area
			tc.Project.BudgetCHF = &estimated

			return fmt.Sprintf(
				"Preliminary cost estimate for %s (%.0f m²): construction type %s, estimated cost "+
					"CHF %.0f - %.0f at CHF %.0f per m². This is a preliminary estimate; for an accurate "+
					"calculation we recommend a consultation with our architect.",
				projectType, area, constructionType, estimated, maxCost, pricePerSqm,
			), nil
		},
	)
}

// NewCheckSpecialistAvailabilityTool lists available specialists and free
// time slots for a requested date.
func NewCheckSpecialistAvailabilityTool(data BusinessData) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"specialist_type": map[string]any{"type": "string", "description": "Architekt, Holzbau-Ingenieur or Bauleiter"},
			"preferred_date":  map[string]any{"type": "string", "description": "Requested consultation date"},
		},
		"required": []string{"specialist_type", "preferred_date"},
	}
	return NewFunctionTool(
		"check_specialist_availability",
		"Check availability of specialists for consultation.",
		schema,
		func(tc *Context, args map[string]any) (string, error) {
			specialistType := stringArg(args, "specialist_type")
			preferredDate := stringArg(args, "preferred_date")

			available, ok := data.Specialists[specialistType]
			if !ok || len(available) == 0 {
				available = []string{"Specialist"}
			}
			return fmt.Sprintf(
				"Available %s: %s. Free time slots on %s: %s. Office location: ERNI Gruppe, "+
					"Guggibadstrasse 8, 6288 Schongau.",
				specialistType, strings.Join(available, ", "), preferredDate,
				strings.Join(data.TimeSlots, ", "),
			), nil
		},
	)
}

// NewBookConsultationTool books a consultation and records the customer's
// contact details and booking status in the conversation context.
func NewBookConsultationTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"specialist_type": map[string]any{"type": "string", "description": "Type of specialist"},
			"date":            map[string]any{"type": "string", "description": "Consultation date"},
			"time":            map[string]any{"type": "string", "description": "Consultation time"},
			"customer_name":   map[string]any{"type": "string", "description": "Customer's full name"},
			"customer_email":  map[string]any{"type": "string", "description": "Customer's email address"},
			"customer_phone":  map[string]any{"type": "string", "description": "Customer's phone number"},
		},
		"required": []string{"specialist_type", "date", "time", "customer_name", "customer_email", "customer_phone"},
	}
	return NewFunctionTool(
		"book_consultation",
		"Book a consultation with a specialist. Requires customer contact information.",
		schema,
		func(tc *Context, args map[string]any) (string, error) {
			specialistType := stringArg(args, "specialist_type")
			date := stringArg(args, "date")
			timeSlot := stringArg(args, "time")
			name := stringArg(args, "customer_name")
			email := stringArg(args, "customer_email")
			phone := stringArg(args, "customer_phone")

			tc.Project.CustomerName = &name
			tc.Project.CustomerEmail = &email
			tc.Project.CustomerPhone = &phone
			tc.Project.ConsultationBooked = true
			tc.Project.SpecialistAssigned = &specialistType

			return fmt.Sprintf(
				"Consultation booked. Customer: %s, specialist: %s, date: %s, time: %s, location: "+
					"ERNI Gruppe, Guggibadstrasse 8, 6288 Schongau. Confirmation sent to %s (phone %s). "+
					"We will contact you one day before the appointment.",
				name, specialistType, date, timeSlot, email, phone,
			), nil
		},
	)
}

// NewGetProjectStatusTool looks up a project in the ledger and records the
// project number in the conversation context.
func NewGetProjectStatusTool(data BusinessData) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"project_number": map[string]any{"type": "string", "description": "Project number, e.g. 2024-156"},
		},
		"required": []string{"project_number"},
	}
	return NewFunctionTool(
		"get_project_status",
		"Get the current status of a building project.",
		schema,
		func(tc *Context, args map[string]any) (string, error) {
			number := stringArg(args, "project_number")
			project, ok := data.Projects[number]
			if !ok {
				return fmt.Sprintf("Project %s not found. Please check the project number or contact us "+
					"at 041 570 70 70.", number), nil
			}

			tc.Project.ProjectNumber = &number

			return fmt.Sprintf(
				"Project status #%s: type %s, location %s, current stage %s, progress %d%%, next "+
					"milestone: %s, project manager: %s. Everything is on schedule.",
				number, project.Type, project.Location, project.Stage, project.Progress,
				project.NextMilestone, project.Responsible,
			), nil
		},
	)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
