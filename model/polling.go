package model

import (
	"encoding/json"
	"errors"
	"time"
)

// Poll lifecycle types.
const (
	PollTypePolled = "polled"
	PollTypeQueued = "queued"
	PollTypeEnded  = "ended"
)

// Option addressing types.
const (
	AddressingImmediate    = "immediate"
	AddressingNonImmediate = "non-immediate"
)

// ErrAlreadyVoted is returned when a voter repeats the same stance.
var ErrAlreadyVoted = errors.New("already voted this way")

// Vote is a weighted for/against tally. A voter is a member of at most
// one side at a time; switching sides retracts the prior points.
type Vote struct {
	PointsFor     float64  `json:"points_for"`
	PointsAgainst float64  `json:"points_against"`
	VotersFor     []string `json:"voters_for"`
	VotersAgainst []string `json:"voters_against"`
	// Weights holds the points each standing vote was cast with, so a
	// retraction subtracts exactly what was added even if the voter's
	// weight changed in between.
	Weights map[string]float64 `json:"weights,omitempty"`
}

// castWeight is the points the voter's standing vote carries. Records
// persisted before weights were tracked fall back to the current
// weight.
func (v *Vote) castWeight(voterID string, current float64) float64 {
	if w, ok := v.Weights[voterID]; ok {
		return w
	}
	return current
}

func (v *Vote) recordWeight(voterID string, points float64) {
	if v.Weights == nil {
		v.Weights = make(map[string]float64)
	}
	v.Weights[voterID] = points
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Cast records a vote worth the given points. A prior opposite vote by
// the same voter is retracted atomically with its points.
func (v *Vote) Cast(voterID string, points float64, favor bool) error {
	if favor {
		if contains(v.VotersFor, voterID) {
			return ErrAlreadyVoted
		}
		if contains(v.VotersAgainst, voterID) {
			v.PointsAgainst -= v.castWeight(voterID, points)
			v.VotersAgainst = remove(v.VotersAgainst, voterID)
		}
		v.PointsFor += points
		v.VotersFor = append(v.VotersFor, voterID)
		v.recordWeight(voterID, points)
		return nil
	}
	if contains(v.VotersAgainst, voterID) {
		return ErrAlreadyVoted
	}
	if contains(v.VotersFor, voterID) {
		v.PointsFor -= v.castWeight(voterID, points)
		v.VotersFor = remove(v.VotersFor, voterID)
	}
	v.PointsAgainst += points
	v.VotersAgainst = append(v.VotersAgainst, voterID)
	v.recordWeight(voterID, points)
	return nil
}

// Voters returns every distinct voter on either side.
func (v *Vote) Voters() []string {
	seen := make(map[string]struct{}, len(v.VotersFor)+len(v.VotersAgainst))
	var out []string
	for _, id := range append(append([]string{}, v.VotersFor...), v.VotersAgainst...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SanctionSpec is one proposed sanction inside an option: the users it
// targets, the action, and which guilds it fans out to.
type SanctionSpec struct {
	Users    []string `json:"users"`
	Action   Action   `json:"action"`
	Duration *int64   `json:"duration"` // seconds, nil = permanent
	Reason   string   `json:"reason"`
	Scope    Scope    `json:"scope"`
	GuildIDs []string `json:"guild_ids"` // required iff Scope == ScopeTargeted
}

// Option is a competing sanction proposal during stage-2 voting.
type Option struct {
	Owner          string         `json:"owner"`
	AddressingType string         `json:"addressing_type"`
	Category       string         `json:"category"`
	Subcategory    string         `json:"subcategory"`
	Attachments    []Attachment   `json:"attachments"`
	Sanctions      []SanctionSpec `json:"sanctions"`
	Polling        Vote           `json:"polling"`
}

// Polling is a report working through the two-stage voting workflow.
// The database table is named 'pollings'.
type Polling struct {
	ID                int64
	Owner             string
	Category          string
	Subcategory       string
	ReportedUsers     []string
	AssociatedServers []string
	BriefDescription  string
	LongDescription   string
	Attachments       []Attachment
	IsAnonymous       bool
	Type              string // polled, queued, ended
	Stage             int    // 1 = verify, 2 = options
	CreatedAt         time.Time
	ExpiresAt         time.Time
	Stage1Vote        Vote
	Options           []Option
}

// Expired reports whether the poll window has closed at the given time.
func (p *Polling) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// DistinctOptionVoters counts distinct voters across all options.
func (p *Polling) DistinctOptionVoters() int {
	seen := make(map[string]struct{})
	for i := range p.Options {
		for _, id := range p.Options[i].Polling.Voters() {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// PollingRecord is the persisted form of Polling.
type PollingRecord struct {
	ID                int64  `db:"id"`
	Owner             string `db:"owner"`
	Category          string `db:"category"`
	Subcategory       string `db:"subcategory"`
	ReportedUsers     string `db:"reported_users"`
	AssociatedServers string `db:"associated_servers"`
	BriefDescription  string `db:"brief_description"`
	LongDescription   string `db:"long_description"`
	Attachments       string `db:"attachments"`
	IsAnonymous       bool   `db:"is_anonymous"`
	Type              string `db:"type"`
	Stage             int    `db:"stage"`
	CreatedAt         int64  `db:"created_at"`
	ExpiresAt         int64  `db:"expires_at"`
	Stage1Vote        string `db:"stage1_vote"` // JSON Vote
	Options           string `db:"options"`     // JSON []Option
}

func (r *PollingRecord) Decode() (*Polling, error) {
	p := &Polling{
		ID:               r.ID,
		Owner:            r.Owner,
		Category:         r.Category,
		Subcategory:      r.Subcategory,
		BriefDescription: r.BriefDescription,
		LongDescription:  r.LongDescription,
		IsAnonymous:      r.IsAnonymous,
		Type:             r.Type,
		Stage:            r.Stage,
		CreatedAt:        time.Unix(r.CreatedAt, 0).UTC(),
		ExpiresAt:        time.Unix(r.ExpiresAt, 0).UTC(),
	}
	for blob, dst := range map[string]any{
		r.ReportedUsers:     &p.ReportedUsers,
		r.AssociatedServers: &p.AssociatedServers,
		r.Attachments:       &p.Attachments,
		r.Stage1Vote:        &p.Stage1Vote,
		r.Options:           &p.Options,
	} {
		if blob == "" {
			continue
		}
		if err := json.Unmarshal([]byte(blob), dst); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Polling) Encode() (*PollingRecord, error) {
	out := &PollingRecord{
		ID:               p.ID,
		Owner:            p.Owner,
		Category:         p.Category,
		Subcategory:      p.Subcategory,
		BriefDescription: p.BriefDescription,
		LongDescription:  p.LongDescription,
		IsAnonymous:      p.IsAnonymous,
		Type:             p.Type,
		Stage:            p.Stage,
		CreatedAt:        p.CreatedAt.Unix(),
		ExpiresAt:        p.ExpiresAt.Unix(),
	}
	for dst, src := range map[*string]any{
		&out.ReportedUsers:     p.ReportedUsers,
		&out.AssociatedServers: p.AssociatedServers,
		&out.Attachments:       p.Attachments,
		&out.Stage1Vote:        p.Stage1Vote,
		&out.Options:           p.Options,
	} {
		blob, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		*dst = string(blob)
	}
	return out, nil
}
