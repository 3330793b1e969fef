// pkg/models/api.go
package models

// Laravel-style validation error response
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// Generic error response (400/404/409/500)
type ErrorResponse struct {
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"Lead not found"`
	Code    string `json:"code,omitempty" example:"NOT_FOUND"`
}

// AJAX endpoints (status drag/drop, quick-create) answer with this shape on failure.
type AjaxErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"Invalid status"`
}

// MassDeleteResponse reports which ids were removed and which did not exist.
type MassDeleteResponse struct {
	Deleted  []uint `json:"deleted"`
	Missing  []uint `json:"missing"`
	Fallback string `json:"fallback,omitempty"`
}

// MassDeleteRequest carries a comma-separated id list ("1,2,3") and the page to go back to.
type MassDeleteRequest struct {
	IDs      string `json:"ids" example:"1,2,3"`
	Fallback string `json:"fallback" example:"lead-list"`
}
