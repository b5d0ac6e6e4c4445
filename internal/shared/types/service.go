package types

// Category represents service categories
type Category string

const (
	CategoryDocuments Category = "documents"
	CategoryEditor    Category = "editor"
	CategorySheets    Category = "sheets"
	CategoryCloud     Category = "cloud"
	CategoryAuth      Category = "auth"
	CategorySearch    Category = "search"
	CategorySystem    Category = "system"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Context carries the caller identity into a tool execution.
// A nil Context means an anonymous caller.
type Context struct {
	UserID   *string `json:"user_id,omitempty"`
	Username *string `json:"username,omitempty"`
}

// User returns the authenticated user ID, or "" for anonymous callers.
func (c *Context) User() string {
	if c == nil || c.UserID == nil {
		return ""
	}
	return *c.UserID
}

// Result represents a service execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Success builds a successful result.
func Success(data map[string]interface{}) (*Result, error) {
	return &Result{Success: true, Data: data}, nil
}

// Failure builds a failed result. Validation problems are reported this way
// rather than as Go errors.
func Failure(message string) (*Result, error) {
	msg := message
	return &Result{Success: false, Error: &msg}, nil
}
