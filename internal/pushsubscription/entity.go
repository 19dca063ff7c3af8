package pushsubscription

import "time"

// Subscription is a browser push endpoint registered by a user.
type Subscription struct {
	ID        string    `yaml:"id" json:"id"`
	UserID    string    `yaml:"user_id" json:"userId"`
	Endpoint  string    `yaml:"endpoint" json:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key" json:"p256dh"`
	AuthKey   string    `yaml:"auth_key" json:"auth"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}
