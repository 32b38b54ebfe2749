package change

// Builder assembles a ChangeSet by walking forward through a document,
// the way texere's Operation builder composes Retain/Delete/Insert steps,
// adapted here to emit (start,end,replacement) triples directly.
type Builder struct {
	lenBefore int
	pos       int
	entries   []Entry
}

// NewBuilder starts a builder over a document of lenBefore characters.
func NewBuilder(lenBefore int) *Builder {
	return &Builder{lenBefore: lenBefore}
}

// Retain advances the cursor n characters without changing them.
func (b *Builder) Retain(n int) *Builder {
	b.pos += n
	return b
}

// Delete removes the next n characters at the cursor.
func (b *Builder) Delete(n int) *Builder {
	end := b.pos + n
	b.entries = append(b.entries, Entry{Start: b.pos, End: end, Replacement: nil})
	b.pos = end
	return b
}

// Insert places text at the cursor without consuming source characters.
func (b *Builder) Insert(text string) *Builder {
	if text == "" {
		return b
	}
	b.entries = append(b.entries, Entry{Start: b.pos, End: b.pos, Replacement: &text})
	return b
}

// Build validates and finalizes the ChangeSet.
func (b *Builder) Build() (ChangeSet, error) {
	return New(b.lenBefore, b.entries)
}

// MustBuild panics on invalid construction; for call sites building
// entries from trusted, already-validated ranges.
func (b *Builder) MustBuild() ChangeSet {
	cs, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cs
}
