package dispatch

import "github.com/devsmilefactory/moversfinder-sub010/core/model"

// CandidateFilter selects which nearby candidates may receive a broadcast.
type CandidateFilter interface {
	Filter(candidates []model.NearbyCandidate) []model.NearbyCandidate
}

// EligibilityFilter implements the standard eligibility rules: the provider
// must be online, marked available and not engaged on another ride.
type EligibilityFilter struct{}

func (EligibilityFilter) Filter(candidates []model.NearbyCandidate) []model.NearbyCandidate {
	var res []model.NearbyCandidate
	for _, c := range candidates {
		if c.Eligible() {
			res = append(res, c)
		}
	}
	return res
}
