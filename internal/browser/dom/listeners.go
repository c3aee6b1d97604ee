// internal/browser/dom/listeners.go
package dom

import (
	"strings"

	"github.com/pagescope/pagescope/internal/browser/style"
	"golang.org/x/net/html"
)

// clickFamilyEvents are the event types whose listeners mark an element as a
// click target.
var clickFamilyEvents = []string{"click", "mousedown", "mouseup", "touchstart", "touchend"}

// ListenerInspector answers whether an element has a click-family event
// listener attached. The answer is advisory: a negative from a weak inspector
// never vetoes the other interactivity tiers.
type ListenerInspector interface {
	HasClickListener(sn *style.StyledNode) bool
}

// SelectInspector picks the best available strategy: the privileged inspector
// when the host session provides one, the attribute fallback otherwise.
func SelectInspector(privileged ListenerInspector) ListenerInspector {
	if privileged != nil {
		return privileged
	}
	return AttributeInspector{}
}

// AttributeInspector is the unprivileged fallback: only on<event> content
// attributes are observable. Listeners registered through addEventListener
// are invisible to it; that is a documented limitation of the strategy, not
// something to compensate for.
type AttributeInspector struct{}

func (AttributeInspector) HasClickListener(sn *style.StyledNode) bool {
	for _, ev := range clickFamilyEvents {
		if v, ok := sn.Attr("on" + ev); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// RegistryInspector is the privileged strategy: a host session that can
// enumerate listeners out of band (DOMDebugger.getEventListeners) records its
// findings here before the snapshot runs.
type RegistryInspector struct {
	listeners map[*html.Node]map[string]struct{}
}

func NewRegistryInspector() *RegistryInspector {
	return &RegistryInspector{listeners: make(map[*html.Node]map[string]struct{})}
}

// Record registers the listener event types observed on a node.
func (r *RegistryInspector) Record(node *html.Node, eventTypes ...string) {
	if node == nil {
		return
	}
	set := r.listeners[node]
	if set == nil {
		set = make(map[string]struct{})
		r.listeners[node] = set
	}
	for _, ev := range eventTypes {
		set[strings.ToLower(ev)] = struct{}{}
	}
}

func (r *RegistryInspector) HasClickListener(sn *style.StyledNode) bool {
	if sn.Node == nil {
		return false
	}
	set := r.listeners[sn.Node]
	for _, ev := range clickFamilyEvents {
		if _, ok := set[ev]; ok {
			return true
		}
	}
	return false
}
