// internal/browser/dom/classifier.go
package dom

// deniedTags are non-semantic or non-content tags whose subtrees carry
// nothing an agent can act on. Rejection is structural: a denied element and
// everything under it is absent from the snapshot, not merely hidden.
var deniedTags = map[string]struct{}{
	"svg":      {},
	"script":   {},
	"style":    {},
	"link":     {},
	"meta":     {},
	"head":     {},
	"noscript": {},
	"template": {},
}

// Accepted reports whether an element tag survives classification. Text
// nodes bypass this entirely; their own visibility rule decides inclusion.
func Accepted(tag string) bool {
	_, denied := deniedTags[tag]
	return !denied
}
