package entity

// classify routes raw input into the persisted and extra buckets and
// zero-fills declared defaults. Presence in a bucket is what
// distinguishes "field known" from "field absent"; absent fields fall
// through the accessor chain instead of reading as nil persisted
// values.
func (e *Entity) classify(raw map[string]any) {
	for name, value := range raw {
		if e.typ.isExtra(name) {
			e.extra[name] = value
			continue
		}
		e.fields[name] = value
	}
	for _, name := range e.typ.Defaults {
		if e.typ.isExtra(name) {
			if _, ok := e.extra[name]; !ok {
				e.extra[name] = ""
			}
			continue
		}
		if _, ok := e.fields[name]; !ok {
			e.fields[name] = ""
		}
	}
}
