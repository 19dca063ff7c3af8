package template

// AgentBlueprint describes one agent a template expands into.
type AgentBlueprint struct {
	Name         string   `yaml:"name" json:"name"`
	Role         string   `yaml:"role" json:"role"`
	Description  string   `yaml:"description" json:"description"`
	SystemPrompt string   `yaml:"system_prompt" json:"systemPrompt"`
	Tools        []string `yaml:"tools" json:"tools"`
}

type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Industry    string `yaml:"industry" json:"industry"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Color       string `yaml:"color" json:"color"`
	// Agents keeps blueprint order; workforce provisioning preserves it.
	Agents []AgentBlueprint `yaml:"agents" json:"agents"`
	// Position orders templates in listings.
	Position int `yaml:"position" json:"-"`
}
