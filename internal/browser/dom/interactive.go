// internal/browser/dom/interactive.go
package dom

import (
	"strings"

	"github.com/pagescope/pagescope/internal/browser/style"
	"github.com/pagescope/pagescope/internal/config"
)

// interactiveTags are natively interactive HTML elements.
var interactiveTags = map[string]struct{}{
	"a":        {},
	"button":   {},
	"input":    {},
	"select":   {},
	"textarea": {},
	"option":   {},
	"optgroup": {},
	"label":    {},
	"summary":  {},
	"details":  {},
	"menu":     {},
	"menuitem": {},
	"embed":    {},
	"object":   {},
}

// interactiveRoles are ARIA roles that imply a user-actionable widget.
var interactiveRoles = map[string]struct{}{
	"button":           {},
	"link":             {},
	"checkbox":         {},
	"radio":            {},
	"switch":           {},
	"tab":              {},
	"option":           {},
	"combobox":         {},
	"listbox":          {},
	"textbox":          {},
	"searchbox":        {},
	"slider":           {},
	"spinbutton":       {},
	"menu":             {},
	"menuitem":         {},
	"menuitemcheckbox": {},
	"menuitemradio":    {},
	"gridcell":         {},
	"treeitem":         {},
}

// clickBindingAttributes are direct click handlers plus the idiomatic
// framework bindings (Angular, Vue shorthand and longhand, Angular 2+ event
// binding).
var clickBindingAttributes = []string{"onclick", "ng-click", "@click", "v-on:click", "(click)"}

// ariaStateAttributes only make sense on elements a user toggles; their
// presence alone marks the element interactive.
var ariaStateAttributes = []string{"aria-expanded", "aria-pressed", "aria-selected", "aria-checked"}

// InteractivityEvaluator decides whether an element is a target a user could
// act on. The tiers run in order and short-circuit on the first positive.
// The cursor and form signals widen detection beyond the explicit tiers and
// default to off; re-enabling them trades precision for recall.
type InteractivityEvaluator struct {
	inspector     ListenerInspector
	cursorSignals bool
	formSignals   bool
}

func NewInteractivityEvaluator(cfg config.SnapshotConfig, inspector ListenerInspector) *InteractivityEvaluator {
	return &InteractivityEvaluator{
		inspector:     SelectInspector(inspector),
		cursorSignals: cfg.EnableCursorSignals,
		formSignals:   cfg.EnableFormSignals,
	}
}

// IsInteractive runs the tier chain against a single element.
func (ie *InteractivityEvaluator) IsInteractive(sn *style.StyledNode) bool {
	if ie.matchesTagOrRole(sn) {
		return true
	}
	if ie.hasClickBinding(sn) {
		return true
	}
	if ie.inspector.HasClickListener(sn) {
		return true
	}
	if ie.hasAriaState(sn) {
		return true
	}
	if ie.isDraggable(sn) {
		return true
	}
	if ie.cursorSignals && sn.Cursor() == "pointer" {
		return true
	}
	if ie.formSignals && ie.isEditable(sn) {
		return true
	}
	return false
}

func (ie *InteractivityEvaluator) matchesTagOrRole(sn *style.StyledNode) bool {
	if _, ok := interactiveTags[sn.Tag()]; ok {
		return true
	}
	for _, attr := range []string{"role", "aria-role"} {
		if role, ok := sn.Attr(attr); ok {
			if _, interactive := interactiveRoles[strings.ToLower(strings.TrimSpace(role))]; interactive {
				return true
			}
		}
	}
	// only an explicit tabindex of exactly "0" counts; negative values and
	// positive tab orders are not reliable interactivity signals
	tabindex, ok := sn.Attr("tabindex")
	return ok && tabindex == "0"
}

func (ie *InteractivityEvaluator) hasClickBinding(sn *style.StyledNode) bool {
	for _, name := range clickBindingAttributes {
		if v, ok := sn.Attr(name); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func (ie *InteractivityEvaluator) hasAriaState(sn *style.StyledNode) bool {
	for _, name := range ariaStateAttributes {
		if _, ok := sn.Attr(name); ok {
			return true
		}
	}
	return false
}

func (ie *InteractivityEvaluator) isDraggable(sn *style.StyledNode) bool {
	v, ok := sn.Attr("draggable")
	return ok && strings.EqualFold(v, "true")
}

func (ie *InteractivityEvaluator) isEditable(sn *style.StyledNode) bool {
	v, ok := sn.Attr("contenteditable")
	if !ok {
		return false
	}
	return v == "" || strings.EqualFold(v, "true")
}
