package model

import "time"

// LeadSource identifies which enrichment stage produced a piece of data.
type LeadSource string

const (
	SourceAIInitial           LeadSource = "ai_initial"
	SourceWebsite             LeadSource = "website"
	SourcePublicRegistry      LeadSource = "public_registry"
	SourceProfessionalNetwork LeadSource = "professional_network"
)

// SourceMethod identifies the mechanism used to obtain the data.
type SourceMethod string

const (
	MethodGemini      SourceMethod = "gemini"
	MethodHTTPFetch   SourceMethod = "http_fetch"
	MethodRegistryAPI SourceMethod = "registry_api"
	MethodSerpAPI     SourceMethod = "serpapi"
)

// ProvenanceEntry records a single enrichment call that contributed to a
// lead. Entries are append-only; their order is the call order.
type ProvenanceEntry struct {
	Source    LeadSource   `json:"source"`
	Method    SourceMethod `json:"method"`
	Details   string       `json:"details,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Candidate is the stage-1 discovery output for a single business.
// Immutable once created.
type Candidate struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// ContactPerson is a person attached to a lead. Contacts are unordered and
// carry no identity key, so duplicates are permitted.
type ContactPerson struct {
	FullName string `json:"fullName"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty"`
}

// LeadStatus represents the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew            LeadStatus = "new"
	LeadStatusAnalyzed       LeadStatus = "analyzed"
	LeadStatusEmailGenerated LeadStatus = "email_generated"
	LeadStatusEmailSent      LeadStatus = "email_sent"
)

// Lead is the final per-candidate record emitted by the pipeline.
// Invariant: Sources is non-empty and its first entry is the discovery
// (ai_initial) entry. Email, when present, has passed basic address
// validation.
type Lead struct {
	Name     string            `json:"name"`
	Website  string            `json:"website,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Address  string            `json:"address,omitempty"`
	Email    string            `json:"email,omitempty"`
	Contacts []ContactPerson   `json:"contacts"`
	Status   LeadStatus        `json:"status"`
	Sources  []ProvenanceEntry `json:"sources"`
}
