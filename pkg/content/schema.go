package content

// FieldType is the declared scalar type of a metadata or questionnaire field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
)

// Taxonomy describes one classification vocabulary
type Taxonomy struct {
	Name  string
	Label string
}

// Taxonomies lists the seven vocabularies assignable to both kinds, in
// display order.
var Taxonomies = []Taxonomy{
	{Name: "laser_class", Label: "Laser Class"},
	{Name: "diffraction_grating_spec", Label: "Diffraction Grating Spec"},
	{Name: "equipment", Label: "Equipment"},
	{Name: "substance", Label: "Substance"},
	{Name: "administration_method", Label: "Administration Method"},
	{Name: "administration_protocol", Label: "Administration Protocol"},
	{Name: "projection_surface", Label: "Projection Surface"},
}

// IsTaxonomy reports whether name is one of the seven vocabularies
func IsTaxonomy(name string) bool {
	for _, t := range Taxonomies {
		if t.Name == name {
			return true
		}
	}
	return false
}

// MetaField declares a public metadata key
type MetaField struct {
	Key  string
	Type FieldType
	Min  *float64
	Max  *float64
}

func bound(v float64) *float64 { return &v }

var measuredFields = []MetaField{
	{Key: "laser_wavelength", Type: TypeInteger, Min: bound(400), Max: bound(700)},
	{Key: "laser_power", Type: TypeNumber, Min: bound(0), Max: bound(5)},
	{Key: "substance_dose", Type: TypeNumber, Min: bound(0)},
	{Key: "projection_distance", Type: TypeNumber, Min: bound(1), Max: bound(20)},
}

var protocolFields = measuredFields

var trialFields = append(append([]MetaField{
	{Key: MetaProtocolID, Type: TypeInteger},
}, measuredFields...),
	MetaField{Key: "administration_notes", Type: TypeString},
	MetaField{Key: "additional_observers", Type: TypeBoolean},
)

// MetaFields returns the declared metadata keys for a kind
func MetaFields(kind Kind) []MetaField {
	switch kind {
	case KindProtocol:
		return protocolFields
	case KindTrial:
		return trialFields
	default:
		return nil
	}
}

// LookupMetaField finds a declared metadata key for a kind
func LookupMetaField(kind Kind, key string) (MetaField, bool) {
	for _, f := range MetaFields(kind) {
		if f.Key == key {
			return f, true
		}
	}
	return MetaField{}, false
}

// NumericMetaKeys are sorted numerically when used in orderby=meta.<key>
var NumericMetaKeys = map[string]bool{
	"laser_power":         true,
	"laser_wavelength":    true,
	"substance_dose":      true,
	"projection_distance": true,
}

// QuestionField is one answer slot of the trial questionnaire
type QuestionField struct {
	Name string
	Type FieldType
}

// QuestionSection groups questionnaire fields for presentation
type QuestionSection struct {
	Key    string
	Label  string
	Fields []QuestionField
}

// QuestionnaireSchema is the static trial questionnaire. Field names are
// unique across sections because answers are stored flat.
var QuestionnaireSchema = []QuestionSection{
	{
		Key:   "about_you",
		Label: "About You",
		Fields: []QuestionField{
			{Name: "participant_name", Type: TypeString},
			{Name: "participant_age", Type: TypeInteger},
			{Name: "experience_level", Type: TypeString},
			{Name: "prior_participation", Type: TypeBoolean},
			{Name: "vision_correction", Type: TypeBoolean},
		},
	},
	{
		Key:   "experiment_setup",
		Label: "Experiment Setup",
		Fields: []QuestionField{
			{Name: "room_lighting", Type: TypeString},
			{Name: "session_duration", Type: TypeInteger},
			{Name: "observer_count", Type: TypeInteger},
			{Name: "eyes_open", Type: TypeBoolean},
			{Name: "setup_notes", Type: TypeString},
		},
	},
	{
		Key:   "substances_used",
		Label: "Substances Used",
		Fields: []QuestionField{
			{Name: "substance_taken", Type: TypeBoolean},
			{Name: "substance_timing", Type: TypeString},
			{Name: "onset_minutes", Type: TypeInteger},
			{Name: "combined_substances", Type: TypeBoolean},
			{Name: "substance_notes", Type: TypeString},
		},
	},
	{
		Key:   "visual_effects",
		Label: "Visual Effects",
		Fields: []QuestionField{
			{Name: "veil_observed", Type: TypeBoolean},
			{Name: "veil_description", Type: TypeString},
			{Name: "veil_intensity", Type: TypeInteger},
			{Name: "geometric_patterns", Type: TypeBoolean},
			{Name: "color_shift", Type: TypeBoolean},
			{Name: "effect_duration", Type: TypeInteger},
		},
	},
	{
		Key:   "other_phenomena",
		Label: "Other Phenomena",
		Fields: []QuestionField{
			{Name: "auditory_effects", Type: TypeBoolean},
			{Name: "emotional_response", Type: TypeString},
			{Name: "entity_contact", Type: TypeBoolean},
			{Name: "other_notes", Type: TypeString},
		},
	},
}

// LookupQuestion finds a field within a questionnaire section
func LookupQuestion(section, field string) (QuestionField, bool) {
	for _, s := range QuestionnaireSchema {
		if s.Key != section {
			continue
		}
		for _, f := range s.Fields {
			if f.Name == field {
				return f, true
			}
		}
	}
	return QuestionField{}, false
}
