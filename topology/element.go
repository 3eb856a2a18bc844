package topology

// Element is one item of the group shorthand accepted by Builder.Pipeline:
// a single node (N), a parallel group (Par) or a sequential group (Seq).
// Groups nest arbitrarily; expansion connects adjacent group boundaries by
// cartesian product before flattening into plain edges.
type Element interface {
	// expand declares the element's nodes/edges on the builder and returns
	// the element's entry and exit node ids.
	expand(b *Builder) (heads, tails []string)
}

type nodeElement struct{ id string }

func (e nodeElement) expand(b *Builder) ([]string, []string) {
	b.AddNode(e.id)
	return []string{e.id}, []string{e.id}
}

type seqElement struct{ elements []Element }

func (e seqElement) expand(b *Builder) ([]string, []string) {
	var heads, tails []string
	for i, el := range e.elements {
		h, t := el.expand(b)
		if i == 0 {
			heads = h
		} else {
			// Cartesian connection across the group boundary.
			for _, from := range tails {
				for _, to := range h {
					b.AddEdge(from, to)
				}
			}
		}
		tails = t
	}
	return heads, tails
}

type parElement struct{ elements []Element }

func (e parElement) expand(b *Builder) ([]string, []string) {
	var heads, tails []string
	for _, el := range e.elements {
		h, t := el.expand(b)
		heads = append(heads, h...)
		tails = append(tails, t...)
	}
	return heads, tails
}

// N declares a single node element.
func N(id string) Element { return nodeElement{id: id} }

// Seq groups elements sequentially: each element's exits connect to the next
// element's entries.
func Seq(elements ...Element) Element { return seqElement{elements: elements} }

// Par groups elements in parallel: all entries and exits are exposed to the
// surrounding sequence.
func Par(elements ...Element) Element { return parElement{elements: elements} }

func expandInto(b *Builder, e Element) {
	e.expand(b)
}
