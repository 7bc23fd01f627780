package domain

import "strings"

// Defaults substituted when the prospect record has no value for a tag.
const (
	DefaultOwnerName      = "there"
	DefaultAssignedToName = "our team"
)

// MergeData carries the prospect-derived values available to email templates.
type MergeData struct {
	OwnerName      string
	BusinessName   string
	Category       string
	AssignedToName string
}

// RenderMergeTags substitutes the four supported {{token}} placeholders in a
// template string. Unknown tokens are left untouched.
func RenderMergeTags(template string, data MergeData) string {
	owner := strings.TrimSpace(data.OwnerName)
	if owner == "" {
		owner = DefaultOwnerName
	}
	assigned := strings.TrimSpace(data.AssignedToName)
	if assigned == "" {
		assigned = DefaultAssignedToName
	}

	replacer := strings.NewReplacer(
		"{{owner_name}}", owner,
		"{{business_name}}", data.BusinessName,
		"{{category}}", data.Category,
		"{{assigned_to_name}}", assigned,
	)
	return replacer.Replace(template)
}
