package threat

import (
	"fmt"
	"strings"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/model"
)

// MutationEvent describes one element insertion reported by the host's
// rendering pipeline.
type MutationEvent struct {
	OwnerID    string            `json:"ownerId"`
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

var scriptLikeTags = map[string]struct{}{
	"script": {},
	"iframe": {},
	"object": {},
	"embed":  {},
}

// ObserveMutation flags script-like insertions and inline handler
// attributes as critical findings. Observe-only: by the time this fires
// the element is already live, so there is nothing safe to undo here.
func (s *Scanner) ObserveMutation(ev MutationEvent) {
	tag := strings.ToLower(ev.Tag)
	if _, ok := scriptLikeTags[tag]; ok {
		s.appendMutationFinding(ev, fmt.Sprintf("script-like element <%s> inserted", tag))
		return
	}
	for name := range ev.Attributes {
		if strings.HasPrefix(strings.ToLower(name), "on") {
			s.appendMutationFinding(ev, fmt.Sprintf("inline handler attribute %q on <%s>", name, tag))
			return
		}
	}
}

func (s *Scanner) appendMutationFinding(ev MutationEvent, message string) {
	if s.alerts == nil {
		return
	}
	s.alerts.Append(alert.NewFinding(model.FindingMutationThreat, model.SeverityCritical,
		message,
		map[string]any{"ownerId": ev.OwnerID, "tag": ev.Tag}))
}
