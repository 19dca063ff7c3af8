package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clawmart/clawmart/internal/skill"
)

const (
	ListingProtocol    = "x402"
	ListingMarketplace = "ClawMart"
	ListingCacheHeader = "public, s-maxage=30, stale-while-revalidate=60"
)

// ListingEntry is the stable external shape of a skill.
type ListingEntry struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Endpoint     string   `json:"endpoint"`
	Method       string   `json:"method"`
	PricePerCall float64  `json:"pricePerCall"`
	Currency     string   `json:"currency"`
	Chain        string   `json:"chain"`
	Tags         []string `json:"tags"`
	ResponseTime string   `json:"responseTime,omitempty"`
	Rating       float64  `json:"rating"`
	TotalCalls   int64    `json:"totalCalls"`
	DetailURL    string   `json:"detailUrl"`
}

type Listing struct {
	Protocol    string          `json:"protocol"`
	Marketplace string          `json:"marketplace"`
	Count       int             `json:"count"`
	Skills      []*ListingEntry `json:"skills"`
}

func (*Listing) HTTPHeader() http.Header {
	h := http.Header{}
	h.Set("Cache-Control", ListingCacheHeader)
	return h
}

// Metadata describes a single skill to programmatic callers.
type Metadata struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PricePerCall  float64         `json:"pricePerCall"`
	Method        string          `json:"method"`
	Endpoint      string          `json:"endpoint"`
	Rating        float64         `json:"rating"`
	Reviews       int             `json:"reviews"`
	Tags          []string        `json:"tags"`
	InputSchema   json.RawMessage `json:"inputSchema,omitempty"`
	ExampleInput  json.RawMessage `json:"exampleInput"`
	ExampleOutput json.RawMessage `json:"exampleOutput"`
}

func (s *Server) absolute(endpoint string) string {
	if isAbsolute(endpoint) {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return s.baseURL + endpoint
}

func (s *Server) entry(sk *skill.Skill) *ListingEntry {
	ref := sk.Slug
	if ref == "" {
		ref = sk.ID
	}
	tags := sk.Tags
	if tags == nil {
		tags = []string{}
	}
	return &ListingEntry{
		Slug:         sk.Slug,
		Name:         sk.Name,
		Description:  sk.Description,
		Category:     sk.Category,
		Endpoint:     s.absolute(sk.Endpoint),
		Method:       string(sk.Method),
		PricePerCall: sk.PricePerCall,
		Currency:     s.payment.Asset,
		Chain:        s.payment.ChainLabel,
		Tags:         tags,
		ResponseTime: sk.ResponseTime,
		Rating:       sk.AverageRating,
		TotalCalls:   sk.TotalCalls,
		DetailURL:    s.baseURL + "/skills/" + ref,
	}
}

// Listing returns the active skills, optionally narrowed to one category.
func (s *Server) Listing(ctx context.Context, category string) (*Listing, error) {
	key := listingKey(category)
	if l, ok := s.cache.Get(ctx, key); ok {
		return l, nil
	}
	skills, err := s.skills.List(ctx, skill.ListInput{Category: category})
	if err != nil {
		return nil, err
	}
	l := &Listing{
		Protocol:    ListingProtocol,
		Marketplace: ListingMarketplace,
		Count:       len(skills),
		Skills:      make([]*ListingEntry, 0, len(skills)),
	}
	for _, sk := range skills {
		l.Skills = append(l.Skills, s.entry(sk))
	}
	s.cache.Set(ctx, key, l)
	return l, nil
}

func (s *Server) Metadata(ctx context.Context, ref string) (*Metadata, error) {
	sk, err := s.activeSkill(ctx, ref)
	if err != nil {
		return nil, err
	}
	tags := sk.Tags
	if tags == nil {
		tags = []string{}
	}
	return &Metadata{
		ID:            sk.ID,
		Slug:          sk.Slug,
		Name:          sk.Name,
		Description:   sk.Description,
		PricePerCall:  sk.PricePerCall,
		Method:        string(sk.Method),
		Endpoint:      s.absolute(sk.Endpoint),
		Rating:        sk.AverageRating,
		Reviews:       sk.TotalReviews,
		Tags:          tags,
		InputSchema:   rawOrNil(sk.InputSchema),
		ExampleInput:  rawOrNull(sk.ExampleInput),
		ExampleOutput: rawOrNull(sk.ExampleOutput),
	}, nil
}

func rawOrNull(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

func rawOrNil(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}
