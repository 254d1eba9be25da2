package ontology

import (
	"fmt"
	"slices"
)

// #region kind

// Kind is the category a label belongs to in the closed vocabulary.
type Kind string

const (
	KindEmotion    Kind = "emotion"
	KindSymptom    Kind = "symptom"
	KindTrigger    Kind = "trigger"
	KindRiskFactor Kind = "risk_factor"
	KindState      Kind = "state"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindEmotion, KindSymptom, KindTrigger, KindRiskFactor, KindState:
		return k, nil
	}
	return "", &InvalidLabelError{Field: "kind", Value: s}
}

// Evidence reports whether the kind is accepted as extracted input.
func (k Kind) Evidence() bool {
	return k == KindEmotion || k == KindSymptom || k == KindTrigger
}

// #endregion kind

// #region labels

// Label is a type label from the closed ontology.
type Label string

const (
	Stress       Label = "Stress"
	Anxiety      Label = "Anxiety"
	Panic        Label = "Panic"
	Sadness      Label = "Sadness"
	Depression   Label = "Depression"
	Irritability Label = "Irritability"
	Overwhelm    Label = "Overwhelm"

	Insomnia                Label = "Insomnia"
	Fatigue                 Label = "Fatigue"
	Restlessness            Label = "Restlessness"
	RapidHeartRate          Label = "RapidHeartRate"
	BreathingDifficulty     Label = "BreathingDifficulty"
	AppetiteChange          Label = "AppetiteChange"
	Withdrawal              Label = "Withdrawal"
	Anhedonia               Label = "Anhedonia"
	ConcentrationDifficulty Label = "ConcentrationDifficulty"

	Academic  Label = "Academic"
	Financial Label = "Financial"
	Family    Label = "Family"
	Social    Label = "Social"
	Work      Label = "Work"

	RepeatedStressExposure Label = "RepeatedStressExposure"

	PanicRisk          Label = "PanicRisk"
	DepressiveSpectrum Label = "DepressiveSpectrum"
	AnxietyRisk        Label = "AnxietyRisk"
	AcademicStress     Label = "AcademicStress"
	SleepDisturbance   Label = "SleepDisturbance"
	SocialIsolation    Label = "SocialIsolation"
	ModerateRisk       Label = "ModerateRisk"
	HighRisk           Label = "HighRisk"
	NeedsMoreContext   Label = "NeedsMoreContext"
)

// StateClass separates mental-state conditions from risk levels and the
// low-information placeholder.
type StateClass int

const (
	ClassNone StateClass = iota
	ClassCondition
	ClassRiskLevel
	ClassPlaceholder
)

type entry struct {
	kind        Kind
	class       StateClass
	description string
}

var vocabulary = map[Label]entry{
	Stress:       {kind: KindEmotion},
	Anxiety:      {kind: KindEmotion},
	Panic:        {kind: KindEmotion},
	Sadness:      {kind: KindEmotion},
	Depression:   {kind: KindEmotion},
	Irritability: {kind: KindEmotion},
	Overwhelm:    {kind: KindEmotion},

	Insomnia:                {kind: KindSymptom},
	Fatigue:                 {kind: KindSymptom},
	Restlessness:            {kind: KindSymptom},
	RapidHeartRate:          {kind: KindSymptom},
	BreathingDifficulty:     {kind: KindSymptom},
	AppetiteChange:          {kind: KindSymptom},
	Withdrawal:              {kind: KindSymptom},
	Anhedonia:               {kind: KindSymptom},
	ConcentrationDifficulty: {kind: KindSymptom},

	Academic:  {kind: KindTrigger},
	Financial: {kind: KindTrigger},
	Family:    {kind: KindTrigger},
	Social:    {kind: KindTrigger},
	Work:      {kind: KindTrigger},

	RepeatedStressExposure: {kind: KindRiskFactor},

	PanicRisk:          {kind: KindState, class: ClassCondition, description: "Panic Risk Indicators"},
	DepressiveSpectrum: {kind: KindState, class: ClassCondition, description: "Depressive Spectrum Indicators"},
	AnxietyRisk:        {kind: KindState, class: ClassCondition, description: "Anxiety Risk Indicators"},
	AcademicStress:     {kind: KindState, class: ClassCondition, description: "Academic Stress"},
	SleepDisturbance:   {kind: KindState, class: ClassCondition, description: "Sleep Disturbance Indicators"},
	SocialIsolation:    {kind: KindState, class: ClassCondition, description: "Social Isolation Indicators"},
	ModerateRisk:       {kind: KindState, class: ClassRiskLevel, description: "Moderate Risk Level"},
	HighRisk:           {kind: KindState, class: ClassRiskLevel, description: "Elevated Concern Level"},
	NeedsMoreContext:   {kind: KindState, class: ClassPlaceholder, description: "Insufficient Context"},
}

// KindOf returns the kind of a label and whether the label is known.
func KindOf(l Label) (Kind, bool) {
	e, ok := vocabulary[l]
	return e.kind, ok
}

// ClassOf returns the state class of a label, ClassNone for non-states.
func ClassOf(l Label) StateClass {
	return vocabulary[l].class
}

// Describe returns the display description of a state, or the label itself.
func Describe(l Label) string {
	if d := vocabulary[l].description; d != "" {
		return d
	}
	return string(l)
}

// ParseLabel validates that s is a label of the expected kind.
func ParseLabel(s string, want Kind) (Label, error) {
	l := Label(s)
	k, ok := KindOf(l)
	if !ok || k != want {
		return "", &InvalidLabelError{Field: string(want), Value: s}
	}
	return l, nil
}

// LabelsOf lists every label of a kind, sorted.
func LabelsOf(k Kind) []Label {
	var out []Label
	for l, e := range vocabulary {
		if e.kind == k {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// #endregion labels

// #region enums

// ConfidenceLabel is a symbolic confidence level. Never a number.
type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "LOW"
	ConfidenceMedium ConfidenceLabel = "MEDIUM"
	ConfidenceHigh   ConfidenceLabel = "HIGH"
)

// ParseConfidence validates a confidence label.
func ParseConfidence(s string) (ConfidenceLabel, error) {
	switch c := ConfidenceLabel(s); c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c, nil
	}
	return "", &InvalidLabelError{Field: "confidence", Value: s}
}

// Persistence labels how an evidence type recurs.
type Persistence string

const (
	PersistencePersistent Persistence = "PERSISTENT"
	PersistenceTransient  Persistence = "TRANSIENT"
	PersistenceRecurring  Persistence = "RECURRING"
)

// ParsePersistence validates a persistence label.
func ParsePersistence(s string) (Persistence, error) {
	switch p := Persistence(s); p {
	case PersistencePersistent, PersistenceTransient, PersistenceRecurring:
		return p, nil
	}
	return "", &InvalidLabelError{Field: "persistence", Value: s}
}

// SafetyFlag is an escalation-sensitivity label, independent of confidence.
type SafetyFlag string

const (
	SafetyNone     SafetyFlag = "NONE"
	SafetyModerate SafetyFlag = "MODERATE"
	SafetyHigh     SafetyFlag = "HIGH"
)

// Priority maps the flag onto the ranking key: NONE 0, MODERATE 1, HIGH 2.
func (f SafetyFlag) Priority() int {
	switch f {
	case SafetyHigh:
		return 2
	case SafetyModerate:
		return 1
	}
	return 0
}

// EscalationLevel is the final advisory urgency classification.
type EscalationLevel string

const (
	EscalationNone     EscalationLevel = "NONE"
	EscalationModerate EscalationLevel = "MODERATE"
	EscalationHigh     EscalationLevel = "HIGH"
	EscalationCritical EscalationLevel = "CRITICAL"
)

// ParseEscalation validates an escalation level.
func ParseEscalation(s string) (EscalationLevel, error) {
	switch e := EscalationLevel(s); e {
	case EscalationNone, EscalationModerate, EscalationHigh, EscalationCritical:
		return e, nil
	}
	return "", &InvalidLabelError{Field: "escalation", Value: s}
}

// #endregion enums

// #region errors

// InvalidLabelError reports a value outside its closed enumeration.
type InvalidLabelError struct {
	Field string
	Value string
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("invalid %s label %q", e.Field, e.Value)
}

// #endregion errors
