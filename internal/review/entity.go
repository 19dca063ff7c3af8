package review

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        string    `yaml:"id" json:"id"`
	SkillID   string    `yaml:"skill_id" json:"skillId"`
	UserID    string    `yaml:"user_id" json:"userId"`
	Rating    int       `yaml:"rating" json:"rating"`
	Comment   string    `yaml:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}
