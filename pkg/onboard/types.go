// Package onboard is the Go client for the parishd registration API.
// It mirrors the wire types the service speaks so callers outside the
// module can drive the five-step registration wizard end to end.
package onboard

import "fmt"

// SelectItem is a labelled dropdown choice.
type SelectItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Draft is the registration form. Zero-value fields are omitted from
// patch requests, so a partially filled draft only touches the fields
// it sets.
type Draft struct {
	// Parish information (step 1)
	ParishName      string      `json:"parish_name,omitempty"`
	Diocese         string      `json:"diocese,omitempty"`
	AddressLine1    string      `json:"address_line1,omitempty"`
	AddressLine2    string      `json:"address_line2,omitempty"`
	City            string      `json:"city,omitempty"`
	State           string      `json:"state,omitempty"`
	Country         string      `json:"country,omitempty"`
	PostalCode      string      `json:"postal_code,omitempty"`
	Phone           string      `json:"phone,omitempty"`
	Email           string      `json:"email,omitempty"`
	WebsiteURL      string      `json:"website_url,omitempty"`
	EstablishedDate string      `json:"established_date,omitempty"`
	PatronSaint     string      `json:"patron_saint,omitempty"`
	Timezone        *SelectItem `json:"timezone,omitempty"`

	// Administrator account (step 2)
	AdminEmail      string `json:"admin_email,omitempty"`
	AdminPassword   string `json:"admin_password,omitempty"`
	AdminFirstName  string `json:"admin_first_name,omitempty"`
	AdminLastName   string `json:"admin_last_name,omitempty"`
	AdminPhone      string `json:"admin_phone,omitempty"`
	AdminRole       string `json:"admin_role,omitempty"`
	AdminDepartment string `json:"admin_department,omitempty"`

	// Plan selection (step 3) — plan_id is set through SelectPlan, not
	// the draft, so the service can check it against the catalog.
	BillingCycle string `json:"billing_cycle,omitempty"`

	// Billing information (step 4)
	BillingName    string `json:"billing_name,omitempty"`
	BillingEmail   string `json:"billing_email,omitempty"`
	BillingPhone   string `json:"billing_phone,omitempty"`
	BillingAddress string `json:"billing_address,omitempty"`
	BillingCity    string `json:"billing_city,omitempty"`
	BillingState   string `json:"billing_state,omitempty"`
	BillingPincode string `json:"billing_pincode,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`
}

// Session is one registration in progress on the server.
type Session struct {
	ID           string              `json:"id"`
	Step         int                 `json:"step"`
	Draft        map[string]any      `json:"draft"`
	Frozen       bool                `json:"frozen"`
	PaymentState string              `json:"payment_state"`
	Result       *RegistrationResult `json:"result,omitempty"`
}

// RegistrationResult is what the backend returned when the parish was
// created.
type RegistrationResult struct {
	ParishID               int    `json:"parish_id"`
	ParishName             string `json:"parish_name"`
	RazorpaySubscriptionID string `json:"razorpay_subscription_id"`
	RazorpayKeyID          string `json:"razorpay_key_id"`
}

// Plan is one subscription tier for a single billing cycle.
type Plan struct {
	PlanID          int    `json:"plan_id"`
	PlanName        string `json:"plan_name"`
	BillingCycle    string `json:"billing_cycle"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	MaxParishioners int    `json:"max_parishioners,omitempty"`
	MaxFamilies     int    `json:"max_families,omitempty"`
	TrialPeriodDays int    `json:"trial_period_days,omitempty"`
}

// CheckoutOptions configures the hosted payment window.
type CheckoutOptions struct {
	Key            string `json:"key"`
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Prefill        struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Contact string `json:"contact"`
	} `json:"prefill"`
	Theme struct {
		Color string `json:"color"`
	} `json:"theme"`
}

// PaymentProof is the gateway's signed confirmation of a completed
// payment.
type PaymentProof struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
}

// VerifyResult is the outcome of submitting a payment proof.
type VerifyResult struct {
	Verified        bool     `json:"verified"`
	Message         string   `json:"message"`
	RedirectURL     string   `json:"redirect_url,omitempty"`
	RedirectDelayMS int64    `json:"redirect_delay_ms,omitempty"`
	Session         *Session `json:"session,omitempty"`
}

// APIError is a structured error response from the service.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"error"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("onboard: %s: %s (%d field problems)", e.Code, e.Message, len(e.Fields))
	}
	return fmt.Sprintf("onboard: %s: %s", e.Code, e.Message)
}
