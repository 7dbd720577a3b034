package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminouslogics/parishd/internal/draft"
)

func completeDraft() draft.Draft {
	d := draft.New()
	d.ParishName = "St. Mary Parish"
	d.Diocese = "Diocese of Springfield"
	d.AddressLine1 = "123 Church Street"
	d.City = "Springfield"
	d.State = "Illinois"
	d.Country = "United States"
	d.PostalCode = "62701"
	d.Phone = "+15551234567"
	d.Email = "info@stmary.org"
	d.PatronSaint = "St. Mary"
	d.Timezone = draft.SelectItem{Label: "Central Time (CT)", Value: "America/Chicago"}

	d.AdminEmail = "admin@stmary.org"
	d.AdminPassword = "secret123"
	d.AdminFirstName = "John"
	d.AdminLastName = "Smith"
	d.AdminPhone = "+15557654321"
	d.AdminRole = "Pastor"

	d.PlanID = 2
	d.BillingCycle = "monthly"

	d.BillingName = "St. Mary Parish"
	d.BillingEmail = "billing@stmary.org"
	d.BillingPhone = "9876543210"
	d.BillingAddress = "123 Church Street, Suite 100"
	d.BillingCity = "Mumbai"
	d.BillingState = "Maharashtra"
	d.BillingPincode = "400001"
	d.BillingCountry = "IN"

	return d
}

func TestCompleteDraftPassesEveryStep(t *testing.T) {
	d := completeDraft()
	for step := FirstStep; step <= LastStep; step++ {
		assert.Empty(t, Evaluate(step, d), "step %d", step)
	}
	assert.Empty(t, EvaluateThrough(StepBilling, d))
}

func TestParishStepChecksOnlyItsOwnFields(t *testing.T) {
	d := completeDraft()
	d.AdminEmail = "" // step 2 field, must not affect step 1
	d.BillingName = ""

	assert.Empty(t, Evaluate(StepParish, d))
}

func TestParishStepRequiredFields(t *testing.T) {
	d := completeDraft()
	d.ParishName = ""
	d.Timezone = draft.SelectItem{}

	problems := Evaluate(StepParish, d)
	assert.Equal(t, "Parish name is required", problems["parish_name"])
	assert.Equal(t, "Timezone is required", problems["timezone"])
	assert.Len(t, problems, 2)
}

func TestParishStepEmailFormat(t *testing.T) {
	d := completeDraft()
	d.Email = "not-an-email"

	problems := Evaluate(StepParish, d)
	assert.Equal(t, "Valid email is required", problems["email"])
}

func TestParishStepOptionalWebsiteURL(t *testing.T) {
	d := completeDraft()

	d.WebsiteURL = ""
	assert.Empty(t, Evaluate(StepParish, d), "empty website is fine")

	d.WebsiteURL = "not a url"
	problems := Evaluate(StepParish, d)
	assert.Equal(t, "Invalid URL", problems["website_url"])

	d.WebsiteURL = "https://www.stmary.org"
	assert.Empty(t, Evaluate(StepParish, d))
}

func TestAdminStepPasswordLength(t *testing.T) {
	d := completeDraft()

	d.AdminPassword = "12345"
	problems := Evaluate(StepAdmin, d)
	assert.Equal(t, "Password must be at least 6 characters", problems["admin_password"])

	d.AdminPassword = "123456"
	assert.Empty(t, Evaluate(StepAdmin, d))
}

func TestAdminStepRoleMandatoryOnceGroupTriggered(t *testing.T) {
	d := completeDraft()
	d.AdminRole = ""
	d.AdminDepartment = ""

	problems := Evaluate(StepAdmin, d)
	assert.Equal(t, "Admin Role is required when other admin fields are provided", problems["admin_role"])
	assert.Len(t, problems, 1, "department stays optional")
}

func TestPlanStep(t *testing.T) {
	d := completeDraft()

	d.PlanID = 0
	problems := Evaluate(StepPlan, d)
	assert.Equal(t, "Please select a plan", problems["plan_id"])

	d.PlanID = 2
	d.BillingCycle = "weekly"
	problems = Evaluate(StepPlan, d)
	assert.Equal(t, "Billing cycle must be monthly or yearly", problems["billing_cycle"])

	d.BillingCycle = "yearly"
	assert.Empty(t, Evaluate(StepPlan, d))
}

func TestBillingStepPincode(t *testing.T) {
	d := completeDraft()

	cases := map[string]string{
		"":        "Pincode is required",
		"12345":   "Pincode must be exactly 6 digits",
		"1234567": "Pincode must be exactly 6 digits",
		"abcdef":  "Pincode must be exactly 6 digits",
		"40 001":  "Pincode must be exactly 6 digits",
	}
	for pincode, want := range cases {
		d.BillingPincode = pincode
		problems := Evaluate(StepBilling, d)
		assert.Equal(t, want, problems["billing_pincode"], "pincode %q", pincode)
	}

	d.BillingPincode = "400001"
	assert.Empty(t, Evaluate(StepBilling, d))
}

func TestPaymentStepHasNoFields(t *testing.T) {
	assert.Empty(t, Evaluate(StepPayment, draft.Draft{}))
}

func TestEvaluateThroughAggregates(t *testing.T) {
	d := completeDraft()
	d.ParishName = ""  // step 1
	d.AdminPhone = ""  // step 2
	d.BillingCity = "" // step 4

	problems := EvaluateThrough(StepBilling, d)
	require.Len(t, problems, 3)
	assert.Contains(t, problems, "parish_name")
	assert.Contains(t, problems, "admin_phone")
	assert.Contains(t, problems, "billing_city")
}

func TestAdminGroupAllEmptyPasses(t *testing.T) {
	assert.Empty(t, AdminGroup(draft.Draft{}))
}

func TestAdminGroupPartialFails(t *testing.T) {
	d := draft.Draft{AdminEmail: "admin@stmary.org"}

	problems := AdminGroup(d)
	assert.NotContains(t, problems, "admin_email")
	assert.Equal(t, "Admin Password is required when other admin fields are provided", problems["admin_password"])
	assert.Contains(t, problems, "admin_first_name")
	assert.Contains(t, problems, "admin_last_name")
	assert.Contains(t, problems, "admin_phone")
	assert.Contains(t, problems, "admin_role")
}

func TestAdminGroupFullyPopulatedPasses(t *testing.T) {
	assert.Empty(t, AdminGroup(completeDraft()))
}
