package api

// CreateInvestigationRequest is the body of POST /api/v1/investigations.
type CreateInvestigationRequest struct {
	Prompt   string `json:"prompt"`
	Profile  string `json:"profile,omitempty"`
	MaxTurns int    `json:"max_turns,omitempty"`
}

// FollowUpRequest is the body of POST /api/v1/investigations/:id/followup.
type FollowUpRequest struct {
	Prompt string `json:"prompt"`
}
