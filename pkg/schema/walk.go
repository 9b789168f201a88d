package schema

// NodeKind tells which part of a definition an identifier belongs to.
type NodeKind string

const (
	NodeSection NodeKind = "section"
	NodeGroup   NodeKind = "group"
	NodeField   NodeKind = "field"
)

// Node is an identifier declared somewhere in a definition. Sections, groups
// and fields share one namespace.
type Node struct {
	Kind NodeKind
	ID   string
}

// Fields returns every field in declaration order: for each section its direct
// fields first, then the fields of each of its groups.
func (d FormDefinition) Fields() []Field {
	var out []Field
	for _, section := range d.Sections {
		out = append(out, section.Fields...)
		for _, group := range section.Groups {
			out = append(out, group.Fields...)
		}
	}
	return out
}

// FieldIDs returns the ids of Fields in the same order.
func (d FormDefinition) FieldIDs() []string {
	fields := d.Fields()
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, field.ID)
	}
	return out
}

// FieldIndex maps field ids to their definitions. When an id is duplicated the
// first declaration wins; duplicates are a definition error reported elsewhere.
func (d FormDefinition) FieldIndex() map[string]Field {
	fields := d.Fields()
	index := make(map[string]Field, len(fields))
	for _, field := range fields {
		if _, exists := index[field.ID]; exists {
			continue
		}
		index[field.ID] = field
	}
	return index
}

// Field looks up a field by id.
func (d FormDefinition) Field(id string) (Field, bool) {
	for _, field := range d.Fields() {
		if field.ID == id {
			return field, true
		}
	}
	return Field{}, false
}

// Nodes lists every declared identifier in document order: a section, then
// its direct fields, then each group followed by the group's fields.
func (d FormDefinition) Nodes() []Node {
	var out []Node
	for _, section := range d.Sections {
		out = append(out, Node{Kind: NodeSection, ID: section.ID})
		for _, field := range section.Fields {
			out = append(out, Node{Kind: NodeField, ID: field.ID})
		}
		for _, group := range section.Groups {
			out = append(out, Node{Kind: NodeGroup, ID: group.ID})
			for _, field := range group.Fields {
				out = append(out, Node{Kind: NodeField, ID: field.ID})
			}
		}
	}
	return out
}
