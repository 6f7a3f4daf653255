package onboard

import (
	"fmt"
	"time"
)

// Customer is the validated, enriched onboarding request.
type Customer struct {
	CustomerID  string `json:"customer_id"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
	Region      string `json:"region"`
	CreatedAt   string `json:"created_at"`
	Source      string `json:"source"`
}

// CustomerRecord is the stored form of a customer after validation.
type CustomerRecord struct {
	Customer
	ValidationScore     float64 `json:"validation_score"`
	RiskLevel           string  `json:"risk_level"`
	ValidationID        string  `json:"validation_id"`
	RecordID            string  `json:"record_id"`
	Operation           string  `json:"operation"`
	ProcessingTimestamp string  `json:"processing_timestamp"`
}

// ValidationError marks a request the caller got wrong, as opposed to an
// internal failure. The handler maps it to a 400 and the span boundary
// records it with a precise status.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// validateRequest checks and enriches the raw payload.
func validateRequest(payload map[string]any) (Customer, error) {
	customerID, _ := payload["customer_id"].(string)
	if customerID == "" {
		return Customer{}, newValidationError("customer ID is required")
	}

	c := Customer{
		CustomerID:  customerID,
		Email:       stringOr(payload, "email", customerID+"@example.com"),
		Type:        stringOr(payload, "type", "standard"),
		CompanyName: stringOr(payload, "company_name", customerID+" Corp"),
		Industry:    stringOr(payload, "industry", "technology"),
		Region:      stringOr(payload, "region", "us-west-2"),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Source:      "api_request",
	}
	return c, nil
}

func stringOr(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
