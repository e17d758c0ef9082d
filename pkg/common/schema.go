package common

import (
	"fmt"
	"strings"
)

const (
	MinConfidence = 0.5
	MaxConfidence = 1.0
)

// EntityType is the closed set of entity categories.
type EntityType string

const (
	EntityProgram          EntityType = "Program"
	EntitySystem           EntityType = "System"
	EntitySubsystem        EntityType = "Subsystem"
	EntityTechnology       EntityType = "Technology"
	EntityCapability       EntityType = "Capability"
	EntityContractor       EntityType = "Contractor"
	EntityGovernmentOffice EntityType = "GovernmentOffice"
	EntityPEO              EntityType = "PEO"
	EntityRequirement      EntityType = "Requirement"
	EntityStandard         EntityType = "Standard"
	EntityMilestone        EntityType = "Milestone"
	EntityTestEvent        EntityType = "TestEvent"
	EntityFundingLine      EntityType = "FundingLine"
	EntityRisk             EntityType = "Risk"
	EntityLocation         EntityType = "Location"
	EntityClassification   EntityType = "Classification"
	EntityTimeline         EntityType = "Timeline"
)

// Valid reports whether t is a member of the closed entity type set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityProgram, EntitySystem, EntitySubsystem, EntityTechnology,
		EntityCapability, EntityContractor, EntityGovernmentOffice, EntityPEO,
		EntityRequirement, EntityStandard, EntityMilestone, EntityTestEvent,
		EntityFundingLine, EntityRisk, EntityLocation, EntityClassification,
		EntityTimeline:
		return true
	}
	return false
}

// EntityTypes returns all entity types in declaration order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityProgram, EntitySystem, EntitySubsystem, EntityTechnology,
		EntityCapability, EntityContractor, EntityGovernmentOffice, EntityPEO,
		EntityRequirement, EntityStandard, EntityMilestone, EntityTestEvent,
		EntityFundingLine, EntityRisk, EntityLocation, EntityClassification,
		EntityTimeline,
	}
}

// RelationType is the closed set of edge labels.
type RelationType string

const (
	RelPartOf         RelationType = "part_of"
	RelOverseenBy     RelationType = "overseen_by"
	RelDevelopedBy    RelationType = "developed_by"
	RelFundedBy       RelationType = "funded_by"
	RelDependsOn      RelationType = "depends_on"
	RelInterfacesWith RelationType = "interfaces_with"
	RelEnables        RelationType = "enables"
	RelMitigates      RelationType = "mitigates"
	RelLocatedAt      RelationType = "located_at"
	RelHasRequirement RelationType = "has_requirement"
	RelTestedBy       RelationType = "tested_by"
	RelCertifiedFor   RelationType = "certified_for"
	RelSupersedes     RelationType = "supersedes"
)

// Valid reports whether r is a member of the closed relation type set.
func (r RelationType) Valid() bool {
	switch r {
	case RelPartOf, RelOverseenBy, RelDevelopedBy, RelFundedBy, RelDependsOn,
		RelInterfacesWith, RelEnables, RelMitigates, RelLocatedAt,
		RelHasRequirement, RelTestedBy, RelCertifiedFor, RelSupersedes:
		return true
	}
	return false
}

// RelationTypes returns all relation types in declaration order.
func RelationTypes() []RelationType {
	return []RelationType{
		RelPartOf, RelOverseenBy, RelDevelopedBy, RelFundedBy, RelDependsOn,
		RelInterfacesWith, RelEnables, RelMitigates, RelLocatedAt,
		RelHasRequirement, RelTestedBy, RelCertifiedFor, RelSupersedes,
	}
}

// ParseRelationType converts s into a RelationType, rejecting unknown labels.
func ParseRelationType(s string) (RelationType, error) {
	r := RelationType(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown relation type %q", s)
	}
	return r, nil
}

// ValidConfidence reports whether c lies in [MinConfidence, MaxConfidence].
// NaN is never valid.
func ValidConfidence(c float64) bool {
	return c >= MinConfidence && c <= MaxConfidence
}

// Triple is a single extracted fact (A, Relation, B) with the types of both
// entities, a confidence and an optional source excerpt.
type Triple struct {
	A          string       `json:"a" validate:"required"`
	TypeA      EntityType   `json:"type_a" validate:"required,entity_type"`
	Relation   RelationType `json:"relation" validate:"required,relation_type"`
	B          string       `json:"b" validate:"required"`
	TypeB      EntityType   `json:"type_b" validate:"required,entity_type"`
	Confidence float64      `json:"confidence" validate:"gte=0.5,lte=1"`
	SourceText string       `json:"source_text,omitempty"`
}

// OrphanEntity is an entity the extractor found without any relationship.
type OrphanEntity struct {
	Entity string     `json:"entity"`
	Type   EntityType `json:"type"`
	Reason string     `json:"reason"`
}

// Ambiguity records a phrase the extractor could interpret more than one way.
type Ambiguity struct {
	Text            string   `json:"text"`
	Interpretations []string `json:"interpretations"`
	Resolution      string   `json:"resolution"`
}

// ExtractionResult is the structured output of one extraction call.
type ExtractionResult struct {
	Triples        []Triple       `json:"triples"`
	OrphanEntities []OrphanEntity `json:"orphan_entities"`
	Ambiguities    []Ambiguity    `json:"ambiguities"`
}
