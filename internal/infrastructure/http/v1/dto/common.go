// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"stockledger/internal/core/id"
	"stockledger/internal/domain/guard"
)

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- List Response ---

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// --- Guarded Mutation Response ---

// MutationResponse is the uniform envelope for guarded mutations. An
// uncommitted response carries the warnings the operator must confirm;
// resubmitting with force=true commits through them.
type MutationResponse struct {
	Committed     bool                   `json:"committed"`
	ID            string                 `json:"id,omitempty"`
	StockWarnings []guard.BalanceWarning `json:"stockWarnings,omitempty"`
	CashWarnings  []guard.BalanceWarning `json:"cashWarnings,omitempty"`
	Document      any                    `json:"document,omitempty"`
	PriceChanges  any                    `json:"priceChanges,omitempty"`
}

// FromGuardResult builds the envelope from a protocol outcome.
func FromGuardResult(result guard.Result) MutationResponse {
	return MutationResponse{
		Committed:     result.Committed,
		StockWarnings: result.StockWarnings,
		CashWarnings:  result.CashWarnings,
	}
}
