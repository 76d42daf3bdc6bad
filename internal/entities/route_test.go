package entities

import "testing"

func TestValidateRoutePath(t *testing.T) {
	valid := []string{
		"/api/v1/org_1_customers",
		"/api/v1/org_1_customers/:id",
		"/api/v1/org_42_purchase-orders",
	}
	for _, path := range valid {
		if err := ValidateRoutePath(path); err != nil {
			t.Errorf("ValidateRoutePath(%s) = %v, want nil", path, err)
		}
	}

	invalid := []string{
		"",
		"api/v1/org_1_customers",
		"/api/v1/org_1_customers?id=1",
		"/api/v1/org_1_customers/:id/extra space",
	}
	for _, path := range invalid {
		if err := ValidateRoutePath(path); err == nil {
			t.Errorf("ValidateRoutePath(%q) = nil, want error", path)
		}
	}
}

func TestDynamicRouteValidate(t *testing.T) {
	route := &DynamicRoute{
		OrganizationID: 1,
		Path:           "/api/v1/org_1_customers",
		Method:         "GET",
		Controller:     "api/v1/org_1_customers",
		Action:         "index",
	}
	if err := route.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := *route
	bad.Method = "TRACE"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid method")
	}

	bad = *route
	bad.OrganizationID = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing organization id")
	}

	bad = *route
	bad.Action = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing action")
	}
}
