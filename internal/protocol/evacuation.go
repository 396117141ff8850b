package protocol

import (
	"fmt"

	"github.com/havenpoint/facility-response/internal/domain"
)

// EvacuationPlan is the computed route map for an evacuation.
type EvacuationPlan struct {
	Zones          []string
	Routes         []string
	AssemblyPoints []string
}

// PlanEvacuation maps affected areas to evacuation zones, routes and
// assembly points. Zones default to the affected areas; when none are
// supplied the incident location is used, and failing that the configured
// fallback zones.
func PlanEvacuation(affectedAreas []string, location domain.Location, fallbackZones []string) EvacuationPlan {
	zones := append([]string(nil), affectedAreas...)
	if len(zones) == 0 {
		if loc := location.String(); loc != "" {
			zones = []string{loc}
		} else {
			zones = append([]string(nil), fallbackZones...)
		}
	}

	routes := make([]string, 0, len(zones))
	assembly := make([]string, 0, len(zones))
	for i, zone := range zones {
		routes = append(routes, fmt.Sprintf("route_%d:%s->nearest_exit", i+1, zone))
		assembly = append(assembly, assemblyPointFor(i))
	}

	return EvacuationPlan{
		Zones:          zones,
		Routes:         routes,
		AssemblyPoints: dedupe(assembly),
	}
}

// EstimatedEvacuationMinutes estimates how long clearing the zones takes.
// Monotonically increasing in both persons and zone count.
func EstimatedEvacuationMinutes(persons, zoneCount int) float64 {
	return 5 + float64(persons)/10 + float64(zoneCount)*2
}

// assemblyPointFor alternates zones across the two facility muster points
// to spread evacuees.
func assemblyPointFor(zoneIndex int) string {
	if zoneIndex%2 == 0 {
		return "assembly_point_front_car_park"
	}
	return "assembly_point_rear_garden"
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
