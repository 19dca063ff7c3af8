package transaction

import "time"

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

type Transaction struct {
	ID      string `yaml:"id" json:"id"`
	SkillID string `yaml:"skill_id" json:"skillId"`
	// BuyerID is a user id for signed-in callers, otherwise the payer reported by payment verification.
	BuyerID string `yaml:"buyer_id" json:"buyerId"`
	// SellerID is always the skill's author at call time.
	SellerID  string    `yaml:"seller_id" json:"sellerId"`
	Amount    float64   `yaml:"amount" json:"amount"`
	Status    Status    `yaml:"status" json:"status"`
	ProofHash string    `yaml:"proof_hash,omitempty" json:"proofHash,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}
