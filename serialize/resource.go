package serialize

import "github.com/bnema/goblock/rules"

// ToResourceRecord flattens a rules.Resource's closed ResourceKind into the
// wire-friendly ResourceRecord shape.
func ToResourceRecord(r *rules.Resource) ResourceRecord {
	rec := ResourceRecord{
		Name:         r.Name,
		Aliases:      r.Aliases,
		Content:      r.Content,
		Dependencies: r.Dependencies,
		Permission:   uint8(r.Permission),
	}
	switch kind := r.Kind.(type) {
	case rules.MimeKind:
		rec.KindTag = "mime"
		rec.MimeType = string(kind.Type)
	case rules.TemplateKind:
		rec.KindTag = "template"
	case rules.FnJavascriptKind:
		rec.KindTag = "fn"
	}
	return rec
}

// ToResource rebuilds a rules.Resource from its wire shape. The caller has
// already validated KindTag via Unmarshal.
func (rec ResourceRecord) ToResource() *rules.Resource {
	r := &rules.Resource{
		Name:         rec.Name,
		Aliases:      rec.Aliases,
		Content:      rec.Content,
		Dependencies: rec.Dependencies,
		Permission:   rules.Permission(rec.Permission),
	}
	switch rec.KindTag {
	case "mime":
		r.Kind = rules.MimeKind{Type: rules.MimeType(rec.MimeType)}
	case "template":
		r.Kind = rules.TemplateKind{}
	case "fn":
		r.Kind = rules.FnJavascriptKind{}
	}
	return r
}
