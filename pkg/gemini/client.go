// Package gemini provides a structured-output Gemini client for the
// enrichment stage calls: business discovery, website scraping, registry
// search, and decision-maker search. Every call requests a JSON response
// against an explicit schema; a response that fails to parse is an error at
// this boundary, never a value.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// BusinessLead is one discovered business.
type BusinessLead struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// DiscoveryResponse is the stage-1 discovery result.
type DiscoveryResponse struct {
	Leads []BusinessLead `json:"leads"`
}

// Contact is a person found on a website or profile page.
type Contact struct {
	FullName string `json:"fullName"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty"`
}

// WebsiteScrapeResponse is the stage-2 website scrape result.
type WebsiteScrapeResponse struct {
	Email    string    `json:"email,omitempty"`
	Contacts []Contact `json:"contacts,omitempty"`
}

// Director is a registered director or owner from a public registry.
type Director struct {
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}

// RegistryResponse is the stage-3 public-registry result.
type RegistryResponse struct {
	Directors []Director `json:"directors,omitempty"`
}

// DecisionMaker is a likely decision-maker found on a professional network.
type DecisionMaker struct {
	FullName string `json:"fullName"`
	Title    string `json:"title"`
}

// NetworkResponse is the stage-4 professional-network result.
type NetworkResponse struct {
	DecisionMakers []DecisionMaker `json:"decisionMakers,omitempty"`
}

// Client performs the four enrichment stage calls.
type Client interface {
	DiscoverBusinesses(ctx context.Context, keywords, locations string, limit int) (*DiscoveryResponse, error)
	ScrapeWebsite(ctx context.Context, websiteURL string) (*WebsiteScrapeResponse, error)
	LookupRegistry(ctx context.Context, businessName string) (*RegistryResponse, error)
	LookupDecisionMakers(ctx context.Context, businessName string) (*NetworkResponse, error)
}

// Prompts holds the fmt templates for the four stage calls. Discovery takes
// (limit, keywords, locations); the others take a single %s argument.
type Prompts struct {
	Discovery string `yaml:"discovery"`
	Website   string `yaml:"website"`
	Registry  string `yaml:"registry"`
	Network   string `yaml:"network"`
}

// DefaultPrompts returns the built-in stage prompt templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Discovery: `Find %d real businesses related to %q in or near %q. For each business, provide its name, website URL, phone number, and full street address.`,
		Website:   `Scrape the live content of the website %q to find a primary contact email address. Also find the full names and job titles of any individuals listed on an 'About Us', 'Team', or 'Contact' page.`,
		Registry:  `Perform a real-time web search of public business registries for the business %q. Extract the full names and roles of any registered directors or owners.`,
		Network:   `Perform a live web search on professional networks for the company %q. Identify 1-3 likely decision-makers (e.g. Owner, Founder, CEO, Marketing Director, Head of Sales) with their full names and exact job titles.`,
	}
}

// Merge returns p with any empty fields filled from defaults.
func (p Prompts) Merge(defaults Prompts) Prompts {
	if p.Discovery == "" {
		p.Discovery = defaults.Discovery
	}
	if p.Website == "" {
		p.Website = defaults.Website
	}
	if p.Registry == "" {
		p.Registry = defaults.Registry
	}
	if p.Network == "" {
		p.Network = defaults.Network
	}
	return p
}

// Option configures the client.
type Option func(*client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the Gemini API base URL. Useful for testing.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithPrompts overrides the stage prompt templates. Empty fields keep the
// defaults.
func WithPrompts(p Prompts) Option {
	return func(c *client) {
		c.prompts = p.Merge(DefaultPrompts())
	}
}

type client struct {
	genai   *genai.Client
	model   string
	baseURL string
	prompts Prompts
}

// NewClient creates a Gemini client backed by google.golang.org/genai.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, eris.New("gemini: api key is required")
	}

	c := &client{
		model:   defaultModel,
		prompts: DefaultPrompts(),
	}
	for _, o := range opts {
		o(c)
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cc.HTTPOptions.BaseURL = c.baseURL
	}

	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	c.genai = gc
	return c, nil
}

var contactSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"fullName": {Type: genai.TypeString},
		"title":    {Type: genai.TypeString},
		"email":    {Type: genai.TypeString},
	},
	Required: []string{"fullName"},
}

var discoverySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"leads": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":    {Type: genai.TypeString},
					"website": {Type: genai.TypeString},
					"phone":   {Type: genai.TypeString},
					"address": {Type: genai.TypeString},
				},
				Required: []string{"name"},
			},
		},
	},
	Required: []string{"leads"},
}

var websiteSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"email":    {Type: genai.TypeString},
		"contacts": {Type: genai.TypeArray, Items: contactSchema},
	},
}

var registrySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"directors": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"fullName": {Type: genai.TypeString},
					"role":     {Type: genai.TypeString},
				},
				Required: []string{"fullName"},
			},
		},
	},
}

var networkSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"decisionMakers": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"fullName": {Type: genai.TypeString},
					"title":    {Type: genai.TypeString},
				},
				Required: []string{"fullName", "title"},
			},
		},
	},
}

func (c *client) DiscoverBusinesses(ctx context.Context, keywords, locations string, limit int) (*DiscoveryResponse, error) {
	prompt := fmt.Sprintf(c.prompts.Discovery, limit, keywords, locations)
	var out DiscoveryResponse
	if err := c.generateJSON(ctx, prompt, discoverySchema, &out); err != nil {
		return nil, eris.Wrap(err, "gemini: discover businesses")
	}
	return &out, nil
}

func (c *client) ScrapeWebsite(ctx context.Context, websiteURL string) (*WebsiteScrapeResponse, error) {
	prompt := fmt.Sprintf(c.prompts.Website, websiteURL)
	var out WebsiteScrapeResponse
	if err := c.generateJSON(ctx, prompt, websiteSchema, &out); err != nil {
		return nil, eris.Wrapf(err, "gemini: scrape website %s", websiteURL)
	}
	return &out, nil
}

func (c *client) LookupRegistry(ctx context.Context, businessName string) (*RegistryResponse, error) {
	prompt := fmt.Sprintf(c.prompts.Registry, businessName)
	var out RegistryResponse
	if err := c.generateJSON(ctx, prompt, registrySchema, &out); err != nil {
		return nil, eris.Wrapf(err, "gemini: registry lookup %s", businessName)
	}
	return &out, nil
}

func (c *client) LookupDecisionMakers(ctx context.Context, businessName string) (*NetworkResponse, error) {
	prompt := fmt.Sprintf(c.prompts.Network, businessName)
	var out NetworkResponse
	if err := c.generateJSON(ctx, prompt, networkSchema, &out); err != nil {
		return nil, eris.Wrapf(err, "gemini: network lookup %s", businessName)
	}
	return &out, nil
}

// generateJSON runs one structured-output generation with web search
// enabled and unmarshals the response into out. Parse-or-fail: no attempt
// is made to recover JSON substrings from free text.
func (c *client) generateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	resp, err := c.genai.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Text()), out); err != nil {
		return eris.Wrap(err, "parse structured json")
	}
	return nil
}
