package permission

import (
	"strings"
	"time"
)

// Permission represents an atomic capability identified by a "resource:action" code.
type Permission struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Module      string    `json:"module"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Wildcard is the action component granting every action on a resource.
const Wildcard = "*"

// ParseCode splits a permission code into its resource and action parts.
// Only codes with exactly one colon and two non-empty parts are valid.
func ParseCode(code string) (resource, action string, ok bool) {
	parts := strings.Split(code, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// WildcardCode returns the "resource:*" form of a permission code, or
// false when the code does not parse.
func WildcardCode(code string) (string, bool) {
	resource, _, ok := ParseCode(code)
	if !ok {
		return "", false
	}
	return resource + ":" + Wildcard, true
}

// ListFilter narrows permission listings.
type ListFilter struct {
	Module   string
	Resource string
	Page     int
	PerPage  int
}
