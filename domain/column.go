package domain

// Column is a named board bucket corresponding to one status value.
//
// Default columns ship with the product and have no stored row until a scope
// customizes them; custom columns are owned by a project or personal scope.
// Deactivated columns are kept for history and ignored at board assembly.
type Column struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	StatusValue Status `json:"statusValue"`
	Color       string `json:"color,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	Order       int    `json:"order"`
	IsDefault   bool   `json:"isDefault,omitempty"`
	IsActive    bool   `json:"isActive"`
}
