package workflow

// Fall follow-up checklist catalog.
const (
	CheckVitals            = "vitals"
	CheckNeuro             = "neuro_check"
	CheckSkin              = "skin_check"
	CheckMedicationReview  = "medication_review"
	CheckCarePlanUpdate    = "care_plan_update"
	CheckFamilyNotified    = "family_notified"
	CheckPhysicianNotified = "physician_notified"
)

var CheckCatalog = []string{
	CheckVitals,
	CheckNeuro,
	CheckSkin,
	CheckMedicationReview,
	CheckCarePlanUpdate,
	CheckFamilyNotified,
	CheckPhysicianNotified,
}

// DefaultRequiredChecks is used for fall events logged without an explicit count.
var DefaultRequiredChecks = len(CheckCatalog)

func IsKnownCheck(checkType string) bool {
	for _, c := range CheckCatalog {
		if c == checkType {
			return true
		}
	}
	return false
}
