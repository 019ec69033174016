package engine

import (
	"idsync/pkg/protect"
	"idsync/pkg/schema"
)

// Kind classifies an action.
type Kind string

const (
	KindCreate   Kind = "CREATE"
	KindUpdate   Kind = "UPDATE"
	KindDelete   Kind = "DELETE"
	KindNoChange Kind = "NO_CHANGE"
)

// FieldChange is one primary attribute whose desired value differs from the
// remote value. OldValue is nil when the remote record lacks the attribute.
type FieldChange struct {
	Field      string `json:"field"`
	RemotePath string `json:"remotePath,omitempty"`
	OldValue   any    `json:"oldValue"`
	NewValue   any    `json:"newValue"`
}

// Action is the reconciliation verdict for one key.
type Action struct {
	Kind    Kind                  `json:"kind"`
	Key     string                `json:"key"`
	Desired *schema.DesiredRecord `json:"desired,omitempty"`
	Remote  *schema.RemoteRecord  `json:"remote,omitempty"`
	Changes []FieldChange         `json:"changes,omitempty"`

	// Protection is set when a protected UPDATE or DELETE was demoted to
	// NO_CHANGE. DemotedFrom keeps the original kind.
	Protection  *protect.Decision `json:"protection,omitempty"`
	DemotedFrom Kind              `json:"demotedFrom,omitempty"`
}

// RemoteID returns the remote identifier, or "" for creates.
func (a *Action) RemoteID() string {
	if a.Remote == nil {
		return ""
	}
	return a.Remote.ID
}

// StateDelta is the partitioned action set for a run.
type StateDelta struct {
	Create   []*Action `json:"create"`
	Update   []*Action `json:"update"`
	Delete   []*Action `json:"delete"`
	NoChange []*Action `json:"noChange"`
	Summary  Summary   `json:"summary"`
}

// Summary counts actions per kind. Protected counts demoted actions, which
// are also included in NoChange.
type Summary struct {
	Create    int `json:"create"`
	Update    int `json:"update"`
	Delete    int `json:"delete"`
	NoChange  int `json:"noChange"`
	Protected int `json:"protected"`
	Total     int `json:"total"`
}

func newStateDelta() *StateDelta {
	return &StateDelta{
		Create:   make([]*Action, 0),
		Update:   make([]*Action, 0),
		Delete:   make([]*Action, 0),
		NoChange: make([]*Action, 0),
	}
}

func (d *StateDelta) add(a *Action) {
	switch a.Kind {
	case KindCreate:
		d.Create = append(d.Create, a)
	case KindUpdate:
		d.Update = append(d.Update, a)
	case KindDelete:
		d.Delete = append(d.Delete, a)
	default:
		d.NoChange = append(d.NoChange, a)
	}
}

func (d *StateDelta) recount() {
	protected := 0
	for _, a := range d.NoChange {
		if a.Protection != nil {
			protected++
		}
	}
	d.Summary = Summary{
		Create:    len(d.Create),
		Update:    len(d.Update),
		Delete:    len(d.Delete),
		NoChange:  len(d.NoChange),
		Protected: protected,
		Total:     len(d.Create) + len(d.Update) + len(d.Delete) + len(d.NoChange),
	}
}

// Actions returns every action in partition order.
func (d *StateDelta) Actions() []*Action {
	out := make([]*Action, 0, d.Summary.Total)
	out = append(out, d.Create...)
	out = append(out, d.Update...)
	out = append(out, d.Delete...)
	out = append(out, d.NoChange...)
	return out
}

// Candidates lists the UPDATE and DELETE actions as protection candidates.
func (d *StateDelta) Candidates() []protect.Candidate {
	out := make([]protect.Candidate, 0, len(d.Update)+len(d.Delete))
	for _, group := range [][]*Action{d.Update, d.Delete} {
		for _, a := range group {
			out = append(out, protect.Candidate{
				Key:      a.Key,
				RemoteID: a.RemoteID(),
				Remote:   a.Remote,
			})
		}
	}
	return out
}

// ApplyProtection demotes protected UPDATE and DELETE actions to NO_CHANGE.
// Demoted actions keep their changes and carry the decision. Nothing is
// dropped.
func ApplyProtection(d *StateDelta, res protect.Result) {
	if len(res.Protected) == 0 {
		return
	}
	decisions := make(map[string]protect.Decision, len(res.Protected))
	for _, p := range res.Protected {
		decisions[p.Candidate.Key] = p.Decision
	}

	demote := func(group []*Action) []*Action {
		kept := group[:0]
		for _, a := range group {
			dec, ok := decisions[a.Key]
			if !ok {
				kept = append(kept, a)
				continue
			}
			a.DemotedFrom = a.Kind
			a.Kind = KindNoChange
			a.Protection = &dec
			d.NoChange = append(d.NoChange, a)
		}
		return kept
	}
	d.Update = demote(d.Update)
	d.Delete = demote(d.Delete)
	d.recount()
}
