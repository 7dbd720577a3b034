// Package rules validates registration drafts one wizard step at a time.
//
// Each step owns a fixed set of fields; advancing past a step only
// checks that step's fields, so partially filled later steps never
// block navigation. Evaluation is pure: it returns a field→message map
// and mutates nothing.
package rules

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/luminouslogics/parishd/internal/draft"
)

// Step numbers for the registration wizard.
const (
	StepParish  = 1
	StepAdmin   = 2
	StepPlan    = 3
	StepBilling = 4
	StepPayment = 5
)

// FirstStep and LastStep bound wizard navigation.
const (
	FirstStep = StepParish
	LastStep  = StepPayment
)

var validate = validator.New()

var pincodeRe = regexp.MustCompile(`^\d{6}$`)

// rule describes one field check within a step.
type rule struct {
	field    string
	get      func(draft.Draft) string
	required bool
	reqMsg   string
	tag      string // validator/v10 tag applied when the value is non-empty
	tagMsg   string
}

var parishRules = []rule{
	{field: "parish_name", get: func(d draft.Draft) string { return d.ParishName }, required: true, reqMsg: "Parish name is required"},
	{field: "diocese", get: func(d draft.Draft) string { return d.Diocese }, required: true, reqMsg: "Diocese is required"},
	{field: "address_line1", get: func(d draft.Draft) string { return d.AddressLine1 }, required: true, reqMsg: "Address is required"},
	{field: "city", get: func(d draft.Draft) string { return d.City }, required: true, reqMsg: "City is required"},
	{field: "state", get: func(d draft.Draft) string { return d.State }, required: true, reqMsg: "State is required"},
	{field: "country", get: func(d draft.Draft) string { return d.Country }, required: true, reqMsg: "Country is required"},
	{field: "postal_code", get: func(d draft.Draft) string { return d.PostalCode }, required: true, reqMsg: "Postal code is required"},
	{field: "phone", get: func(d draft.Draft) string { return d.Phone }, required: true, reqMsg: "Phone is required"},
	{field: "email", get: func(d draft.Draft) string { return d.Email }, required: true, reqMsg: "Valid email is required", tag: "email", tagMsg: "Valid email is required"},
	{field: "website_url", get: func(d draft.Draft) string { return d.WebsiteURL }, tag: "url", tagMsg: "Invalid URL"},
	{field: "patron_saint", get: func(d draft.Draft) string { return d.PatronSaint }, required: true, reqMsg: "Patron saint is required"},
	{field: "timezone", get: func(d draft.Draft) string { return d.Timezone.Value }, required: true, reqMsg: "Timezone is required"},
}

var adminRules = []rule{
	{field: "admin_email", get: func(d draft.Draft) string { return d.AdminEmail }, required: true, reqMsg: "Valid admin email is required", tag: "email", tagMsg: "Valid admin email is required"},
	{field: "admin_password", get: func(d draft.Draft) string { return d.AdminPassword }, required: true, reqMsg: "Password must be at least 6 characters", tag: "min=6", tagMsg: "Password must be at least 6 characters"},
	{field: "admin_first_name", get: func(d draft.Draft) string { return d.AdminFirstName }, required: true, reqMsg: "First name is required"},
	{field: "admin_last_name", get: func(d draft.Draft) string { return d.AdminLastName }, required: true, reqMsg: "Last name is required"},
	{field: "admin_phone", get: func(d draft.Draft) string { return d.AdminPhone }, required: true, reqMsg: "Phone is required"},
}

var billingRules = []rule{
	{field: "billing_name", get: func(d draft.Draft) string { return d.BillingName }, required: true, reqMsg: "Billing name is required"},
	{field: "billing_email", get: func(d draft.Draft) string { return d.BillingEmail }, required: true, reqMsg: "Valid billing email is required", tag: "email", tagMsg: "Valid billing email is required"},
	{field: "billing_phone", get: func(d draft.Draft) string { return d.BillingPhone }, required: true, reqMsg: "Billing phone is required"},
	{field: "billing_address", get: func(d draft.Draft) string { return d.BillingAddress }, required: true, reqMsg: "Billing address is required"},
	{field: "billing_city", get: func(d draft.Draft) string { return d.BillingCity }, required: true, reqMsg: "City is required"},
	{field: "billing_state", get: func(d draft.Draft) string { return d.BillingState }, required: true, reqMsg: "State is required"},
	{field: "billing_country", get: func(d draft.Draft) string { return d.BillingCountry }, required: true, reqMsg: "Country is required"},
}

// evaluate runs a rule table against the draft.
func evaluate(rs []rule, d draft.Draft, problems map[string]string) {
	for _, r := range rs {
		v := r.get(d)
		if v == "" {
			if r.required {
				problems[r.field] = r.reqMsg
			}
			continue
		}
		if r.tag != "" {
			if err := validate.Var(v, r.tag); err != nil {
				problems[r.field] = r.tagMsg
			}
		}
	}
}

// Evaluate checks the fields owned by the given step and returns a
// field→message map. An empty map means the step is complete. Steps
// outside 1-4 (including the payment step, which has no form fields)
// always pass.
func Evaluate(step int, d draft.Draft) map[string]string {
	problems := make(map[string]string)

	switch step {
	case StepParish:
		evaluate(parishRules, d, problems)
	case StepAdmin:
		evaluate(adminRules, d, problems)
		for field, msg := range AdminGroup(d) {
			if _, ok := problems[field]; !ok {
				problems[field] = msg
			}
		}
	case StepPlan:
		if d.PlanID <= 0 {
			problems["plan_id"] = "Please select a plan"
		}
		if d.BillingCycle != "monthly" && d.BillingCycle != "yearly" {
			problems["billing_cycle"] = "Billing cycle must be monthly or yearly"
		}
	case StepBilling:
		evaluate(billingRules, d, problems)
		if d.BillingPincode == "" {
			problems["billing_pincode"] = "Pincode is required"
		} else if !pincodeRe.MatchString(d.BillingPincode) {
			problems["billing_pincode"] = "Pincode must be exactly 6 digits"
		}
	}

	return problems
}

// EvaluateThrough checks every step up to and including the given step.
// Used before submitting the registration, where the whole draft must
// hold together.
func EvaluateThrough(step int, d draft.Draft) map[string]string {
	problems := make(map[string]string)
	for s := FirstStep; s <= step; s++ {
		for field, msg := range Evaluate(s, d) {
			problems[field] = msg
		}
	}
	return problems
}

// AdminGroup enforces the all-or-nothing administrator rule: if any of
// the six core admin fields is filled in, all six become mandatory.
// Returns problems for the missing ones, or an empty map when the group
// is either fully empty or fully populated.
func AdminGroup(d draft.Draft) map[string]string {
	group := []struct {
		field string
		value string
		label string
	}{
		{"admin_email", d.AdminEmail, "Admin Email"},
		{"admin_password", d.AdminPassword, "Admin Password"},
		{"admin_first_name", d.AdminFirstName, "Admin First Name"},
		{"admin_last_name", d.AdminLastName, "Admin Last Name"},
		{"admin_phone", d.AdminPhone, "Admin Phone"},
		{"admin_role", d.AdminRole, "Admin Role"},
	}

	any := false
	for _, g := range group {
		if g.value != "" {
			any = true
			break
		}
	}

	problems := make(map[string]string)
	if !any {
		return problems
	}

	for _, g := range group {
		if g.value == "" {
			problems[g.field] = g.label + " is required when other admin fields are provided"
		}
	}
	return problems
}
