package user

import "time"

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Unlimited marks a plan without a workforce cap.
const Unlimited = -1

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// WorkforceLimit is the number of workforces a user on p may own.
func (p Plan) WorkforceLimit() int {
	switch p {
	case PlanPro:
		return 3
	case PlanEnterprise:
		return Unlimited
	default:
		return 1
	}
}

type User struct {
	ID string `yaml:"id" json:"id"`
	// ExternalID is the identity provider's user id.
	ExternalID       string    `yaml:"external_id" json:"externalId"`
	Email            string    `yaml:"email" json:"email"`
	Name             string    `yaml:"name,omitempty" json:"name,omitempty"`
	ImageURL         string    `yaml:"image_url,omitempty" json:"imageUrl,omitempty"`
	Plan             Plan      `yaml:"plan" json:"plan"`
	StripeCustomerID string    `yaml:"stripe_customer_id,omitempty" json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `yaml:"updated_at" json:"updatedAt"`
}

// DisplayName falls back to the email when no name is known.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
