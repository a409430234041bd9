// Package registry holds the static badge-class registry: which course a
// badge class belongs to and which access code gates it. The registry is
// built once at startup and read-only afterwards.
package registry

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Entry describes one badge class in the registry file.
type Entry struct {
	CourseID   string `yaml:"course_id"`
	AccessCode string `yaml:"access_code"`
}

type file struct {
	BadgeClasses map[string]Entry `yaml:"badge_classes"`
}

// Registry maps badge class IDs to their course and expected access code.
type Registry struct {
	courses     map[string]string
	accessCodes map[string]string
}

// Default returns the compiled-in registry for the production courses.
func Default() *Registry {
	return build(map[string]Entry{
		"g_AMm-vOSC6q4_oB2EMwKw": {CourseID: "planning-your-scientific-journey", AccessCode: "PYSJ_415_GH"},
		"kQSOcDEFQH2rEX9-2Q6cZg": {CourseID: "business-concepts-for-life-scientists", AccessCode: "BCLS_633_TW"},
		"x1nv8LDdS0GSYDAGf-K49w": {CourseID: "share-your-research", AccessCode: "SYR_201_RP"},
	})
}

// Load reads a registry file in YAML form:
//
//	badge_classes:
//	  g_AMm-vOSC6q4_oB2EMwKw:
//	    course_id: planning-your-scientific-journey
//	    access_code: PYSJ_415_GH
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a registry from raw YAML bytes.
func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}
	if len(f.BadgeClasses) == 0 {
		return nil, fmt.Errorf("registry file declares no badge classes")
	}
	for id, entry := range f.BadgeClasses {
		if entry.CourseID == "" {
			return nil, fmt.Errorf("badge class %q has no course_id", id)
		}
	}
	return build(f.BadgeClasses), nil
}

func build(entries map[string]Entry) *Registry {
	r := &Registry{
		courses:     make(map[string]string, len(entries)),
		accessCodes: make(map[string]string, len(entries)),
	}
	for id, entry := range entries {
		r.courses[id] = entry.CourseID
		if entry.AccessCode != "" {
			r.accessCodes[id] = entry.AccessCode
		}
	}
	return r
}

// CourseID looks up the course a badge class belongs to.
func (r *Registry) CourseID(badgeClassID string) (string, bool) {
	courseID, ok := r.courses[badgeClassID]
	return courseID, ok
}

// AccessCode looks up the expected access code for a badge class.
func (r *Registry) AccessCode(badgeClassID string) (string, bool) {
	code, ok := r.accessCodes[badgeClassID]
	return code, ok
}

// Validate checks registry consistency at startup. In the access-code
// variant every badge class must carry a code; catching a gap here turns a
// latent per-request 500 into a refusal to boot.
func (r *Registry) Validate(requireAccessCodes bool) error {
	if !requireAccessCodes {
		return nil
	}
	for id := range r.courses {
		if _, ok := r.accessCodes[id]; !ok {
			return fmt.Errorf("badge class %q has a course mapping but no access code", id)
		}
	}
	return nil
}
