package protocol

import (
	"testing"

	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEveryCategoryHasProtocol(t *testing.T) {
	categories := []domain.Category{
		domain.CategoryFire, domain.CategoryMedical, domain.CategorySecurityBreach,
		domain.CategoryLockdown, domain.CategoryEvacuation, domain.CategorySevereWeather,
		domain.CategoryChemicalSpill, domain.CategoryBombThreat, domain.CategoryViolentIncident,
		domain.CategoryMissingPerson, domain.CategoryPowerOutage, domain.CategorySystemFailure,
	}

	for _, c := range categories {
		p := Lookup(c)
		assert.NotEmpty(t, p.Actions, "category %s has no automated actions", c)
		assert.Positive(t, p.BaselineResponseMins, "category %s has no baseline", c)
	}
}

func TestEvacuationRequiredCategories(t *testing.T) {
	required := []domain.Category{
		domain.CategoryFire, domain.CategoryBombThreat,
		domain.CategoryChemicalSpill, domain.CategorySevereWeather,
	}
	for _, c := range required {
		assert.True(t, EvacuationRequired(c), "category %s should require evacuation", c)
	}

	assert.False(t, EvacuationRequired(domain.CategoryMedical))
	assert.False(t, EvacuationRequired(domain.CategoryMissingPerson))
}

func TestLockdownRequired(t *testing.T) {
	// Critical priority forces lockdown regardless of category.
	assert.True(t, LockdownRequired(domain.CategoryMedical, domain.PriorityCritical))
	assert.True(t, LockdownRequired(domain.CategoryPowerOutage, domain.PriorityCritical))

	for _, c := range []domain.Category{
		domain.CategorySecurityBreach, domain.CategoryLockdown,
		domain.CategoryBombThreat, domain.CategoryViolentIncident,
	} {
		assert.True(t, LockdownRequired(c, domain.PriorityMedium), "category %s should require lockdown", c)
	}

	assert.False(t, LockdownRequired(domain.CategoryMedical, domain.PriorityHigh))
	assert.False(t, LockdownRequired(domain.CategoryFire, domain.PriorityLow))
}

func TestFireProtocolContactsFireServiceAndAmbulance(t *testing.T) {
	p := Lookup(domain.CategoryFire)
	assert.Contains(t, p.Services, ServiceFire)
	assert.Contains(t, p.Services, ServiceAmbulance)
}

func TestMedicalProtocolContactsAmbulanceOnly(t *testing.T) {
	p := Lookup(domain.CategoryMedical)
	assert.Equal(t, []EmergencyService{ServiceAmbulance}, p.Services)
}

func TestEstimatedResponseMinutes(t *testing.T) {
	base := float64(Lookup(domain.CategoryFire).BaselineResponseMins)

	assert.Equal(t, base*0.5, EstimatedResponseMinutes(domain.CategoryFire, domain.PriorityCritical))
	assert.Equal(t, base*0.7, EstimatedResponseMinutes(domain.CategoryFire, domain.PriorityHigh))
	assert.Equal(t, base, EstimatedResponseMinutes(domain.CategoryFire, domain.PriorityMedium))
	assert.Equal(t, base*1.5, EstimatedResponseMinutes(domain.CategoryFire, domain.PriorityLow))
}
