package models

import "time"

// NormalizeArtifact validates and repairs a raw record into a canonical
// Artifact. It accepts anything a JSON decoder may have produced (a
// map[string]any) as well as already-typed *Artifact/Artifact values.
//
// It returns nil when the record is corrupt beyond repair: not an object,
// id missing or not a string, or type outside the closed enumeration.
// Corrupt records are dropped whole, never partially repaired.
//
// Every other field is filled with its documented default:
//   - name: "Untitled" when empty
//   - createdAt: now when missing or unparseable
//   - updatedAt: createdAt when missing or unparseable
//   - favorite, pinned: false unless a real boolean
//   - schemaVersion: clamped into [1, CurrentSchemaVersion]
//   - tags: string entries only, non-strings dropped
//
// The function is pure and idempotent; every adapter routes every record
// through it on the way in and on the way out.
func NormalizeArtifact(raw any) *Artifact {
	m, ok := asMap(raw)
	if !ok {
		return nil
	}

	id, ok := m["id"].(string)
	if !ok || id == "" {
		return nil
	}
	typ := ArtifactType(stringField(m, "type"))
	if !typ.Valid() {
		return nil
	}

	a := &Artifact{ID: id, Type: typ}

	a.Name = stringField(m, "name")
	if a.Name == "" {
		a.Name = "Untitled"
	}

	if data, ok := m["data"].(map[string]any); ok {
		a.Data = JSONMap(data)
	} else if data, ok := m["data"].(JSONMap); ok {
		a.Data = data
	}

	now := time.Now().UTC()
	a.CreatedAt = timeField(m, "createdAt", now)
	a.UpdatedAt = timeField(m, "updatedAt", a.CreatedAt)

	a.Favorite, _ = m["favorite"].(bool)
	a.Pinned, _ = m["pinned"].(bool)

	a.SchemaVersion = clampVersion(m["schemaVersion"])
	a.Tags = stringSlice(m["tags"])

	a.ProjectID = stringField(m, "projectId")

	return a
}

// NormalizeProject is the Project counterpart of NormalizeArtifact. Projects
// have no type enumeration, so only a missing or non-string id rejects.
func NormalizeProject(raw any) *Project {
	m, ok := asMap(raw)
	if !ok {
		return nil
	}

	id, ok := m["id"].(string)
	if !ok || id == "" {
		return nil
	}

	p := &Project{ID: id}

	p.Name = stringField(m, "name")
	if p.Name == "" {
		p.Name = "Untitled Project"
	}

	now := time.Now().UTC()
	p.CreatedAt = timeField(m, "createdAt", now)
	p.UpdatedAt = timeField(m, "updatedAt", p.CreatedAt)

	p.Slug = stringField(m, "slug")
	p.SlugAliases = stringSlice(m["slugAliases"])
	p.Logo = stringField(m, "logo")

	return p
}

func asMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case JSONMap:
		return map[string]any(v), true
	case *Artifact:
		if v == nil {
			return nil, false
		}
		return artifactMap(v), true
	case Artifact:
		return artifactMap(&v), true
	case *Project:
		if v == nil {
			return nil, false
		}
		return projectMap(v), true
	case Project:
		return projectMap(&v), true
	}
	return nil, false
}

func artifactMap(a *Artifact) map[string]any {
	m := map[string]any{
		"id":            a.ID,
		"type":          string(a.Type),
		"name":          a.Name,
		"favorite":      a.Favorite,
		"pinned":        a.Pinned,
		"schemaVersion": a.SchemaVersion,
		"projectId":     a.ProjectID,
	}
	if a.Data != nil {
		m["data"] = map[string]any(a.Data)
	}
	if !a.CreatedAt.IsZero() {
		m["createdAt"] = a.CreatedAt
	}
	if !a.UpdatedAt.IsZero() {
		m["updatedAt"] = a.UpdatedAt
	}
	if a.Tags != nil {
		m["tags"] = a.Tags
	}
	return m
}

func projectMap(p *Project) map[string]any {
	m := map[string]any{
		"id":   p.ID,
		"name": p.Name,
		"slug": p.Slug,
		"logo": p.Logo,
	}
	if !p.CreatedAt.IsZero() {
		m["createdAt"] = p.CreatedAt
	}
	if !p.UpdatedAt.IsZero() {
		m["updatedAt"] = p.UpdatedAt
	}
	if p.SlugAliases != nil {
		m["slugAliases"] = p.SlugAliases
	}
	return m
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// timeField accepts time.Time values and RFC3339 strings; anything else
// repairs to the fallback.
func timeField(m map[string]any, key string, fallback time.Time) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		if !v.IsZero() {
			return v
		}
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return fallback
}

func clampVersion(v any) int {
	n := 0
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	case uint64:
		n = int(x)
	}
	if n < 1 {
		return CurrentSchemaVersion
	}
	if n > CurrentSchemaVersion {
		return CurrentSchemaVersion
	}
	return n
}

func stringSlice(v any) []string {
	switch xs := v.(type) {
	case []string:
		if len(xs) == 0 {
			return nil
		}
		out := make([]string, len(xs))
		copy(out, xs)
		return out
	case []any:
		var out []string
		for _, x := range xs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
