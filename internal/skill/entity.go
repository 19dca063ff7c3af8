package skill

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusDisabled Status = "disabled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusDisabled:
		return true
	}
	return false
}

type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

func (m Method) Valid() bool {
	return m == MethodGet || m == MethodPost
}

type Skill struct {
	ID              string `yaml:"id" json:"id"`
	Slug            string `yaml:"slug" json:"slug"`
	Name            string `yaml:"name" json:"name"`
	Description     string `yaml:"description" json:"description"`
	LongDescription string `yaml:"long_description,omitempty" json:"longDescription,omitempty"`
	Category        string `yaml:"category" json:"category"`
	// Endpoint is either a path on this marketplace or an absolute upstream URL.
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	Method       Method  `yaml:"method" json:"method"`
	PricePerCall float64 `yaml:"price_per_call" json:"pricePerCall"`
	AuthorID     string  `yaml:"author_id" json:"authorId"`
	AuthorName   string  `yaml:"author_name" json:"authorName"`
	// Tags is treated as a set; order carries no meaning.
	Tags          []string `yaml:"tags" json:"tags"`
	ExampleInput  string   `yaml:"example_input,omitempty" json:"exampleInput,omitempty"`
	ExampleOutput string   `yaml:"example_output,omitempty" json:"exampleOutput,omitempty"`
	ResponseTime  string   `yaml:"response_time,omitempty" json:"responseTime,omitempty"`
	// InputSchema is an optional JSON Schema for invocation bodies.
	InputSchema   string    `yaml:"input_schema,omitempty" json:"inputSchema,omitempty"`
	TotalCalls    int64     `yaml:"total_calls" json:"totalCalls"`
	TotalReviews  int       `yaml:"total_reviews" json:"totalReviews"`
	AverageRating float64   `yaml:"average_rating" json:"averageRating"`
	Status        Status    `yaml:"status" json:"status"`
	CreatedAt     time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updatedAt"`
}

// Patch carries the fields an author may change; nil means "leave as is".
type Patch struct {
	Name            *string   `json:"name,omitempty"`
	Description     *string   `json:"description,omitempty"`
	LongDescription *string   `json:"longDescription,omitempty"`
	Endpoint        *string   `json:"endpoint,omitempty"`
	PricePerCall    *float64  `json:"pricePerCall,omitempty"`
	Category        *string   `json:"category,omitempty"`
	Tags            *[]string `json:"tags,omitempty"`
	Status          *Status   `json:"status,omitempty"`
}

func (p *Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.LongDescription == nil && p.Endpoint == nil &&
		p.PricePerCall == nil && p.Category == nil && p.Tags == nil && p.Status == nil
}
