package keyboard

import "strings"

// ComposeResult classifies what a fed keysym did to the compose state.
type ComposeResult int

const (
	// ComposeIgnored: the keysym is not part of any sequence and the
	// machine was idle; handle the key normally.
	ComposeIgnored ComposeResult = iota
	// ComposeComposing: mid-sequence, swallow the key.
	ComposeComposing
	// ComposeCancelled: the key broke the pending sequence.
	ComposeCancelled
	// ComposeComposed: a sequence completed; Result holds the outcome.
	ComposeComposed
)

type composeNode struct {
	next   map[Keysym]*composeNode
	result rune
}

// Compose is the dead-key and Multi_key state machine. A nil *Compose
// (locale without composition) ignores everything.
type Compose struct {
	root    *composeNode
	current *composeNode
	result  rune
}

// NewCompose builds the compose table for a locale. The C and POSIX
// locales have no compose sequences and yield nil.
func NewCompose(locale string) *Compose {
	base := locale
	if i := strings.IndexAny(base, ".@"); i >= 0 {
		base = base[:i]
	}
	if base == "" || base == "C" || base == "POSIX" {
		return nil
	}
	return &Compose{root: buildComposeTable()}
}

// Feed advances the machine by one keysym. Modifier keysyms never
// disturb a pending sequence.
func (c *Compose) Feed(sym Keysym) ComposeResult {
	if c == nil {
		return ComposeIgnored
	}
	if isModifierSym(sym) {
		if c.current != nil {
			return ComposeComposing
		}
		return ComposeIgnored
	}

	node := c.current
	if node == nil {
		node = c.root
		if _, starts := node.next[sym]; !starts {
			return ComposeIgnored
		}
	}

	next, ok := node.next[sym]
	if !ok {
		c.current = nil
		return ComposeCancelled
	}
	if next.result != 0 {
		c.result = next.result
		c.current = nil
		return ComposeComposed
	}
	c.current = next
	return ComposeComposing
}

// Result returns the rune of the last completed sequence.
func (c *Compose) Result() rune { return c.result }

// Reset abandons any pending sequence.
func (c *Compose) Reset() {
	if c != nil {
		c.current = nil
	}
}

func isModifierSym(sym Keysym) bool {
	return sym >= KeysymShiftL && sym <= KeysymSuperL
}

// add installs one key sequence of any length.
func (n *composeNode) add(seq []Keysym, result rune) {
	node := n
	for _, s := range seq {
		if node.next == nil {
			node.next = make(map[Keysym]*composeNode)
		}
		child, ok := node.next[s]
		if !ok {
			child = &composeNode{}
			node.next[s] = child
		}
		node = child
	}
	node.result = result
}

// buildComposeTable wires the standard Latin dead-key and Multi_key
// sequences.
func buildComposeTable() *composeNode {
	root := &composeNode{}

	// pairs runs "base composed" two runes at a time.
	dead := func(first Keysym, pairs string) {
		rs := []rune(pairs)
		for i := 0; i+1 < len(rs); i += 2 {
			root.add([]Keysym{first, symFromRune(rs[i])}, rs[i+1])
		}
	}
	multi := func(a, b rune, result rune) {
		root.add([]Keysym{KeysymMultiKey, symFromRune(a), symFromRune(b)}, result)
	}

	dead(KeysymDeadAcute, "aáeéiíoóuúyýcćnńsśzźAÁEÉIÍOÓUÚYÝCĆNŃSŚZŹ")
	dead(KeysymDeadGrave, "aàeèiìoòuùAÀEÈIÌOÒUÙ")
	dead(KeysymDeadCircumflex, "aâeêiîoôuûAÂEÊIÎOÔUÛ")
	dead(KeysymDeadDiaeresis, "aäeëiïoöuüyÿAÄEËIÏOÖUÜ")
	dead(KeysymDeadTilde, "aãnñoõAÃNÑOÕ")

	// A dead key followed by space yields the spacing accent itself.
	root.add([]Keysym{KeysymDeadAcute, symFromRune(' ')}, '\'')
	root.add([]Keysym{KeysymDeadGrave, symFromRune(' ')}, '`')
	root.add([]Keysym{KeysymDeadCircumflex, symFromRune(' ')}, '^')
	root.add([]Keysym{KeysymDeadDiaeresis, symFromRune(' ')}, '"')
	root.add([]Keysym{KeysymDeadTilde, symFromRune(' ')}, '~')

	for _, p := range []struct {
		a, b rune
		r    rune
	}{
		{'\'', 'a', 'á'}, {'\'', 'e', 'é'}, {'\'', 'i', 'í'},
		{'\'', 'o', 'ó'}, {'\'', 'u', 'ú'}, {'\'', 'y', 'ý'},
		{'`', 'a', 'à'}, {'`', 'e', 'è'}, {'`', 'i', 'ì'},
		{'`', 'o', 'ò'}, {'`', 'u', 'ù'},
		{'"', 'a', 'ä'}, {'"', 'e', 'ë'}, {'"', 'o', 'ö'},
		{'"', 'u', 'ü'}, {'"', 'i', 'ï'},
		{'^', 'a', 'â'}, {'^', 'e', 'ê'}, {'^', 'i', 'î'},
		{'^', 'o', 'ô'}, {'^', 'u', 'û'},
		{'~', 'a', 'ã'}, {'~', 'n', 'ñ'}, {'~', 'o', 'õ'},
		{'s', 's', 'ß'},
		{'e', '=', '€'}, {'=', 'e', '€'},
		{'o', 'c', '©'}, {'o', 'r', '®'},
		{'+', '-', '±'},
		{'1', '2', '½'}, {'1', '4', '¼'},
		{'o', 'o', '°'},
		{'a', 'e', 'æ'}, {'A', 'E', 'Æ'},
		{'c', ',', 'ç'}, {'C', ',', 'Ç'},
		{'!', '!', '¡'}, {'?', '?', '¿'},
		{'<', '<', '«'}, {'>', '>', '»'},
		{'x', 'x', '×'},
		{'m', 'u', 'µ'},
	} {
		multi(p.a, p.b, p.r)
	}

	return root
}
