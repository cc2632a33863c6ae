package student

import (
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/notamil/backend/core"
)

var (
	planTierTag  = "plantier"
	planTierText = "invalid plan tier"

	expiryRequiredTag  = "expiry_required"
	expiryRequiredText = "an expiry date is required for subscription plans"
)

func init() {
	_ = core.Validate.RegisterValidation(planTierTag, planTierValidation)
	core.RegisterCustomTranslation(planTierTag, planTierText)

	core.Validate.RegisterStructValidation(newStudentStructValidation, NewStudent{})
	core.RegisterCustomTranslation(expiryRequiredTag, expiryRequiredText)
}

// planTierValidation checks that the provided plan is one of AllPlans.
func planTierValidation(fl validator.FieldLevel) bool {
	plan := fl.Field().String()
	sort.Strings(AllPlans)
	if idx := sort.SearchStrings(AllPlans, plan); idx < len(AllPlans) {
		return AllPlans[idx] == plan
	}
	return false
}

// newStudentStructValidation requires an expiry date on subscription tiers;
// the credit-only tier has none.
func newStudentStructValidation(sl validator.StructLevel) {
	ns := sl.Current().Interface().(NewStudent)
	if ns.Plan != PlanCredits && ns.Plan != "" && ns.ExpiresAt.IsZero() {
		sl.ReportError(ns.ExpiresAt, "expires_at", "ExpiresAt", expiryRequiredTag, "")
	}
}
