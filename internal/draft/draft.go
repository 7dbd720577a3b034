// Package draft holds the registration form state accumulated across
// wizard steps.
package draft

// SelectItem is a labelled dropdown choice. Only the value travels to
// the upstream API; the label is kept so clients can re-render the
// selection.
type SelectItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Draft is the full registration form. Fields are grouped by the wizard
// step that collects them; the struct itself is flat, matching the
// upstream request body.
type Draft struct {
	// Parish information (step 1)
	ParishName      string     `json:"parish_name"`
	Diocese         string     `json:"diocese"`
	AddressLine1    string     `json:"address_line1"`
	AddressLine2    string     `json:"address_line2,omitempty"`
	City            string     `json:"city"`
	State           string     `json:"state"`
	Country         string     `json:"country"`
	PostalCode      string     `json:"postal_code"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	WebsiteURL      string     `json:"website_url,omitempty"`
	EstablishedDate string     `json:"established_date,omitempty"`
	PatronSaint     string     `json:"patron_saint"`
	Timezone        SelectItem `json:"timezone"`

	// Administrator account (step 2)
	AdminEmail      string `json:"admin_email"`
	AdminPassword   string `json:"admin_password"`
	AdminFirstName  string `json:"admin_first_name"`
	AdminLastName   string `json:"admin_last_name"`
	AdminPhone      string `json:"admin_phone"`
	AdminRole       string `json:"admin_role,omitempty"`
	AdminDepartment string `json:"admin_department,omitempty"`

	// Plan selection (step 3)
	PlanID       int    `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`

	// Billing information (step 4)
	BillingName    string `json:"billing_name"`
	BillingEmail   string `json:"billing_email"`
	BillingPhone   string `json:"billing_phone"`
	BillingAddress string `json:"billing_address"`
	BillingCity    string `json:"billing_city"`
	BillingState   string `json:"billing_state"`
	BillingPincode string `json:"billing_pincode"`
	BillingCountry string `json:"billing_country"`
}

// New returns a draft with the same defaults a fresh registration form
// starts with. Timezone has no default; the form forces a choice.
func New() Draft {
	return Draft{
		BillingCycle:   "monthly",
		BillingCountry: "IN",
	}
}

// Patch is a partial update to a draft. Nil fields are left untouched.
type Patch struct {
	ParishName      *string     `json:"parish_name,omitempty"`
	Diocese         *string     `json:"diocese,omitempty"`
	AddressLine1    *string     `json:"address_line1,omitempty"`
	AddressLine2    *string     `json:"address_line2,omitempty"`
	City            *string     `json:"city,omitempty"`
	State           *string     `json:"state,omitempty"`
	Country         *string     `json:"country,omitempty"`
	PostalCode      *string     `json:"postal_code,omitempty"`
	Phone           *string     `json:"phone,omitempty"`
	Email           *string     `json:"email,omitempty"`
	WebsiteURL      *string     `json:"website_url,omitempty"`
	EstablishedDate *string     `json:"established_date,omitempty"`
	PatronSaint     *string     `json:"patron_saint,omitempty"`
	Timezone        *SelectItem `json:"timezone,omitempty"`

	AdminEmail      *string `json:"admin_email,omitempty"`
	AdminPassword   *string `json:"admin_password,omitempty"`
	AdminFirstName  *string `json:"admin_first_name,omitempty"`
	AdminLastName   *string `json:"admin_last_name,omitempty"`
	AdminPhone      *string `json:"admin_phone,omitempty"`
	AdminRole       *string `json:"admin_role,omitempty"`
	AdminDepartment *string `json:"admin_department,omitempty"`

	BillingName    *string `json:"billing_name,omitempty"`
	BillingEmail   *string `json:"billing_email,omitempty"`
	BillingPhone   *string `json:"billing_phone,omitempty"`
	BillingAddress *string `json:"billing_address,omitempty"`
	BillingCity    *string `json:"billing_city,omitempty"`
	BillingState   *string `json:"billing_state,omitempty"`
	BillingPincode *string `json:"billing_pincode,omitempty"`
	BillingCountry *string `json:"billing_country,omitempty"`
}

// Apply merges p into d, field by field. Plan selection is deliberately
// absent from Patch: the plan is set through the plan selection
// endpoint so it can be checked against the catalog.
func (d *Draft) Apply(p Patch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&d.ParishName, p.ParishName)
	set(&d.Diocese, p.Diocese)
	set(&d.AddressLine1, p.AddressLine1)
	set(&d.AddressLine2, p.AddressLine2)
	set(&d.City, p.City)
	set(&d.State, p.State)
	set(&d.Country, p.Country)
	set(&d.PostalCode, p.PostalCode)
	set(&d.Phone, p.Phone)
	set(&d.Email, p.Email)
	set(&d.WebsiteURL, p.WebsiteURL)
	set(&d.EstablishedDate, p.EstablishedDate)
	set(&d.PatronSaint, p.PatronSaint)
	if p.Timezone != nil {
		d.Timezone = *p.Timezone
	}

	set(&d.AdminEmail, p.AdminEmail)
	set(&d.AdminPassword, p.AdminPassword)
	set(&d.AdminFirstName, p.AdminFirstName)
	set(&d.AdminLastName, p.AdminLastName)
	set(&d.AdminPhone, p.AdminPhone)
	set(&d.AdminRole, p.AdminRole)
	set(&d.AdminDepartment, p.AdminDepartment)

	set(&d.BillingName, p.BillingName)
	set(&d.BillingEmail, p.BillingEmail)
	set(&d.BillingPhone, p.BillingPhone)
	set(&d.BillingAddress, p.BillingAddress)
	set(&d.BillingCity, p.BillingCity)
	set(&d.BillingState, p.BillingState)
	set(&d.BillingPincode, p.BillingPincode)
	set(&d.BillingCountry, p.BillingCountry)
}

// Registration is the request body for the upstream parish creation
// call. It is the draft with the timezone flattened to its IANA value
// and the payment method pinned to online checkout.
type Registration struct {
	ParishName      string `json:"parish_name"`
	Diocese         string `json:"diocese"`
	AddressLine1    string `json:"address_line1"`
	AddressLine2    string `json:"address_line2,omitempty"`
	City            string `json:"city"`
	State           string `json:"state"`
	Country         string `json:"country"`
	PostalCode      string `json:"postal_code"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	WebsiteURL      string `json:"website_url,omitempty"`
	EstablishedDate string `json:"established_date,omitempty"`
	PatronSaint     string `json:"patron_saint"`
	Timezone        string `json:"timezone"`

	AdminEmail      string `json:"admin_email"`
	AdminPassword   string `json:"admin_password"`
	AdminFirstName  string `json:"admin_first_name"`
	AdminLastName   string `json:"admin_last_name"`
	AdminPhone      string `json:"admin_phone"`
	AdminRole       string `json:"admin_role,omitempty"`
	AdminDepartment string `json:"admin_department,omitempty"`

	PlanID       int    `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`

	BillingName    string `json:"billing_name"`
	BillingEmail   string `json:"billing_email"`
	BillingPhone   string `json:"billing_phone"`
	BillingAddress string `json:"billing_address"`
	BillingCity    string `json:"billing_city"`
	BillingState   string `json:"billing_state"`
	BillingPincode string `json:"billing_pincode"`
	BillingCountry string `json:"billing_country"`

	PaymentMethod string `json:"payment_method"`
}

// Flatten converts the draft into the upstream registration body.
func (d Draft) Flatten() Registration {
	return Registration{
		ParishName:      d.ParishName,
		Diocese:         d.Diocese,
		AddressLine1:    d.AddressLine1,
		AddressLine2:    d.AddressLine2,
		City:            d.City,
		State:           d.State,
		Country:         d.Country,
		PostalCode:      d.PostalCode,
		Phone:           d.Phone,
		Email:           d.Email,
		WebsiteURL:      d.WebsiteURL,
		EstablishedDate: d.EstablishedDate,
		PatronSaint:     d.PatronSaint,
		Timezone:        d.Timezone.Value,
		AdminEmail:      d.AdminEmail,
		AdminPassword:   d.AdminPassword,
		AdminFirstName:  d.AdminFirstName,
		AdminLastName:   d.AdminLastName,
		AdminPhone:      d.AdminPhone,
		AdminRole:       d.AdminRole,
		AdminDepartment: d.AdminDepartment,
		PlanID:          d.PlanID,
		BillingCycle:    d.BillingCycle,
		BillingName:     d.BillingName,
		BillingEmail:    d.BillingEmail,
		BillingPhone:    d.BillingPhone,
		BillingAddress:  d.BillingAddress,
		BillingCity:     d.BillingCity,
		BillingState:    d.BillingState,
		BillingPincode:  d.BillingPincode,
		BillingCountry:  d.BillingCountry,
		PaymentMethod:   "online",
	}
}

// AdminName returns the administrator's display name for checkout
// prefill.
func (d Draft) AdminName() string {
	switch {
	case d.AdminFirstName == "":
		return d.AdminLastName
	case d.AdminLastName == "":
		return d.AdminFirstName
	default:
		return d.AdminFirstName + " " + d.AdminLastName
	}
}
