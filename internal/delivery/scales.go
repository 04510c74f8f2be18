// Package delivery implements the participant-facing survey flow: the scale
// definitions shown after ad exposure and the state machine gating audio
// playback, scale advancement, and submission.
package delivery

// Item is one survey question answered on a 1-7 rating.
type Item struct {
	ID     string
	Stem   string
	Active bool
}

// Scale is one page of items: a Likert agreement block or a semantic
// differential block.
type Scale struct {
	ID    string
	Title string
	Items []Item
}

// RatingMin and RatingMax bound every answer.
const (
	RatingMin = 1
	RatingMax = 7
)

// ActiveItems returns the items a participant must answer on this scale.
func (s *Scale) ActiveItems() []Item {
	active := make([]Item, 0, len(s.Items))

	for _, item := range s.Items {
		if item.Active {
			active = append(active, item)
		}
	}

	return active
}

// ActiveScales filters out scales with no active items; those pages never
// appear in the step sequence.
func ActiveScales(scales []Scale) []Scale {
	filtered := make([]Scale, 0, len(scales))

	for _, scale := range scales {
		if len(scale.ActiveItems()) > 0 {
			filtered = append(filtered, scale)
		}
	}

	return filtered
}

// StudyScales returns the T1 questionnaire: attitude toward the ad
// (semantic differential), brand attitude, perceived greenwashing, and
// purchase intention (Likert).
func StudyScales() []Scale {
	return []Scale{
		{
			ID:    "ad_attitude",
			Title: "The ad you just heard was...",
			Items: []Item{
				{ID: "aad_1", Stem: "unpleasant / pleasant", Active: true},
				{ID: "aad_2", Stem: "boring / interesting", Active: true},
				{ID: "aad_3", Stem: "not credible / credible", Active: true},
				{ID: "aad_4", Stem: "unconvincing / convincing", Active: true},
			},
		},
		{
			ID:    "brand_attitude",
			Title: "How do you feel about the Verde brand?",
			Items: []Item{
				{ID: "batt_1", Stem: "I have a positive impression of this brand.", Active: true},
				{ID: "batt_2", Stem: "I would trust products made by this brand.", Active: true},
				{ID: "batt_3", Stem: "This brand seems honest about its products.", Active: true},
			},
		},
		{
			ID:    "greenwashing",
			Title: "Thinking about the environmental claims in the ad...",
			Items: []Item{
				{ID: "gw_1", Stem: "The ad exaggerates how environmentally friendly the product is.", Active: true},
				{ID: "gw_2", Stem: "The environmental claims in the ad are vague or unprovable.", Active: true},
				{ID: "gw_3", Stem: "The brand uses environmental language to mislead consumers.", Active: true},
				{ID: "gw_4", Stem: "The ad made claims no sneaker could actually live up to.", Active: true},
			},
		},
		{
			ID:    "purchase_intention",
			Title: "And finally...",
			Items: []Item{
				{ID: "pi_1", Stem: "I would consider buying this sneaker.", Active: true},
				{ID: "pi_2", Stem: "I would recommend this sneaker to a friend.", Active: true},
				// Retired after the pilot; kept for payload compatibility
				// with the pilot's exports.
				{ID: "pi_3", Stem: "I would pay a premium for this sneaker.", Active: false},
			},
		},
	}
}
