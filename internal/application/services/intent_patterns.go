package services

import (
	"github.com/optivista/lensadvisor/internal/domain/entities"
)

// Static clinical dictionaries for intent extraction. These are process-wide
// constants: loaded once, never mutated, so no synchronization is needed
// around them. Ordering matters: tables are scanned top to bottom and for
// lifestyle classification the first match wins.

type tagPattern struct {
	Name       entities.TagName
	Confidence float64
	Keywords   []string
}

var tagPatterns = []tagPattern{
	{entities.TagFirstTimeProgressive, 0.95, []string{
		"first-time progressive", "first time progressive", "new to progressive",
		"never worn progressive", "first progressive",
	}},
	{entities.TagNewWearer, 0.90, []string{
		"first-time wearer", "first time wearer", "new wearer", "never worn glasses",
		"first pair of glasses",
	}},
	{entities.TagPriorNonAdapt, 0.90, []string{
		"couldn't adapt", "could not adapt", "failed to adapt", "non-adapt",
		"returned progressive", "gave up on progressive",
	}},
	{entities.TagPresbyopia, 0.90, []string{
		"presbyopia", "presbyopic", "trouble reading up close", "arms too short",
		"holds reading material further",
	}},
	{entities.TagComputerHeavyUse, 0.90, []string{
		"computer", "screen time", "monitor", "vdu", "digital device", "laptop",
	}},
	{entities.TagNightDrivingComplaint, 0.90, []string{
		"driving at night", "night driving", "glare when driving", "headlight",
	}},
	{entities.TagGlareSensitivity, 0.85, []string{
		"glare", "halos", "reflections bother",
	}},
	{entities.TagEyeStrain, 0.85, []string{
		"eye strain", "eyestrain", "tired eyes", "eye fatigue",
	}},
	{entities.TagDryEyes, 0.85, []string{
		"dry eye", "dry eyes", "gritty",
	}},
	{entities.TagLightSensitivity, 0.85, []string{
		"light sensitive", "sensitive to light", "photophobia", "bright light bothers",
	}},
	{entities.TagOutdoorLifestyle, 0.85, []string{
		"outdoors", "outdoor", "fishing", "golf", "gardening", "hiking",
	}},
	{entities.TagSportsActive, 0.85, []string{
		"sports", "running", "cycling", "gym", "active lifestyle",
	}},
	{entities.TagReadingHeavy, 0.85, []string{
		"avid reader", "reads a lot", "reading for hours", "loves to read",
	}},
	{entities.TagSmallFramePreference, 0.80, []string{
		"small frame", "narrow frame", "petite frame",
	}},
	{entities.TagBudgetConscious, 0.80, []string{
		"budget", "cheapest", "affordable", "cost conscious", "cost-conscious",
	}},
	{entities.TagPremiumSeeker, 0.80, []string{
		"premium", "best quality", "top of the line", "top of the range",
	}},
}

// Occupation inference only fires when the corresponding tag was not already
// detected from the note text, and at a lower confidence than text detection.
type occupationRule struct {
	Tag        entities.TagName
	Confidence float64
	Keywords   []string
}

var occupationRules = []occupationRule{
	{entities.TagComputerHeavyUse, 0.75, []string{
		"developer", "programmer", "software", "accountant", "analyst",
		"designer", "office", "writer", "data entry", "it ",
	}},
	{entities.TagOutdoorLifestyle, 0.80, []string{
		"farmer", "construction", "landscap", "fisherman", "builder",
		"roofer", "surveyor", "groundskeeper",
	}},
}

// Age at which presbyopia is assumed when the note does not mention it.
const (
	presbyopiaInferenceAge        = 40
	presbyopiaInferenceConfidence = 0.70
)

type lifestyleCategory struct {
	Label    string
	Keywords []string
}

// Priority ordered: first category with any keyword hit wins.
var lifestyleCategories = []lifestyleCategory{
	{"Office / screen-focused lifestyle", []string{"computer", "office", "desk", "screen", "laptop"}},
	{"Outdoor lifestyle", []string{"outdoor", "farm", "fishing", "golf", "garden", "hiking"}},
	{"Active / sports lifestyle", []string{"sport", "running", "cycling", "gym", "tennis"}},
	{"Driving-heavy lifestyle", []string{"driver", "driving", "commute"}},
	{"Reading-focused lifestyle", []string{"reader", "reading", "books"}},
}

const defaultLifestyle = "General lifestyle"

type keywordEntry struct {
	Label    string
	Keywords []string
}

var complaintEntries = []keywordEntry{
	{"glare at night", []string{"glare driving", "driving at night", "headlight"}},
	{"eye strain", []string{"eye strain", "eyestrain", "tired eyes"}},
	{"headaches", []string{"headache", "migraine"}},
	{"blurred near vision", []string{"blurry up close", "blurred near", "trouble reading", "small print"}},
	{"blurred distance vision", []string{"blurry far", "blurred distance", "can't see far", "cannot see far"}},
	{"dry eyes", []string{"dry eye", "gritty"}},
	{"dizziness with lenses", []string{"dizzy", "dizziness", "nausea", "swimming sensation"}},
}

var clinicalFlagEntries = []keywordEntry{
	{"diabetes", []string{"diabetes", "diabetic"}},
	{"cataract", []string{"cataract"}},
	{"glaucoma", []string{"glaucoma"}},
	{"macular degeneration", []string{"macular"}},
	{"amblyopia", []string{"amblyopia", "lazy eye"}},
	{"post-surgery", []string{"lasik", "post-op", "post surgery", "eye surgery"}},
	{"prior non-adapt", []string{"couldn't adapt", "could not adapt", "failed to adapt"}},
}

// characteristicRule derives a recommended product characteristic from the
// detected tag set. Rules are additive; any matching source sets the
// characteristic to true.
type characteristicRule struct {
	Characteristic string
	Tags           []entities.TagName
	Complaints     []string
	Flags          []string
}

var characteristicRules = []characteristicRule{
	{entities.CharSoftDesign,
		[]entities.TagName{entities.TagFirstTimeProgressive, entities.TagNewWearer},
		nil,
		[]string{"prior non-adapt"}},
	{entities.CharPremium,
		[]entities.TagName{entities.TagFirstTimeProgressive, entities.TagNewWearer, entities.TagPremiumSeeker},
		nil, nil},
	{entities.CharBlueLight,
		[]entities.TagName{entities.TagComputerHeavyUse, entities.TagEyeStrain},
		[]string{"eye strain"}, nil},
	{entities.CharAntiReflective,
		[]entities.TagName{entities.TagComputerHeavyUse, entities.TagEyeStrain, entities.TagNightDrivingComplaint, entities.TagGlareSensitivity},
		nil, nil},
	{entities.CharAntiGlare,
		[]entities.TagName{entities.TagNightDrivingComplaint, entities.TagGlareSensitivity},
		[]string{"glare at night"}, nil},
	{entities.CharUVProtection,
		[]entities.TagName{entities.TagOutdoorLifestyle},
		nil, nil},
	{entities.CharPhotochromic,
		[]entities.TagName{entities.TagOutdoorLifestyle, entities.TagLightSensitivity},
		nil, nil},
	{entities.CharImpactRes,
		[]entities.TagName{entities.TagSportsActive},
		nil, nil},
	{entities.CharThinLens,
		[]entities.TagName{entities.TagSmallFramePreference},
		nil, nil},
	{entities.CharBudget,
		[]entities.TagName{entities.TagBudgetConscious},
		nil, nil},
}
