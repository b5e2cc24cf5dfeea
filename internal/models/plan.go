package models

import (
	"fmt"
	"strings"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStarter  Plan = "starter"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// Unlimited is the limit sentinel used at every resolution step
const Unlimited int64 = -1

// PlanLimits holds the default resource ceilings of a tier
type PlanLimits struct {
	Links         int64 `json:"links"`
	Clicks        int64 `json:"clicks"`
	Users         int64 `json:"users"`
	CustomDomains bool  `json:"custom_domains"`
}

// PlanTiers is the fixed tier table. Keep in sync with the pricing page.
var PlanTiers = map[Plan]PlanLimits{
	PlanFree:     {Links: 50, Clicks: 1000, Users: 1, CustomDomains: false},
	PlanStarter:  {Links: 500, Clicks: 10000, Users: 3, CustomDomains: true},
	PlanPro:      {Links: 5000, Clicks: 100000, Users: 10, CustomDomains: true},
	PlanBusiness: {Links: 50000, Clicks: 1000000, Users: 50, CustomDomains: true},
}

// planOrder is the upgrade path, lowest first
var planOrder = []Plan{PlanFree, PlanStarter, PlanPro, PlanBusiness}

// ParsePlan accepts a tier name. "growth" is the legacy name of pro.
func ParsePlan(s string) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free", "":
		return PlanFree, nil
	case "starter":
		return PlanStarter, nil
	case "pro", "growth":
		return PlanPro, nil
	case "business":
		return PlanBusiness, nil
	}
	return "", fmt.Errorf("unknown plan %q", s)
}

// Limits returns the tier defaults. Unknown plans get free limits.
func (p Plan) Limits() PlanLimits {
	if l, ok := PlanTiers[p]; ok {
		return l
	}
	return PlanTiers[PlanFree]
}

// Next returns the tier strictly above p, or false on the top tier.
func (p Plan) Next() (Plan, bool) {
	for i, plan := range planOrder {
		if plan == p && i+1 < len(planOrder) {
			return planOrder[i+1], true
		}
	}
	if _, known := PlanTiers[p]; !known {
		// Unknown plans are treated as free for limits, so upgrade to starter
		return PlanStarter, true
	}
	return "", false
}

// DisplayName is the capitalised plan name used in user-facing messages
func (p Plan) DisplayName() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}
