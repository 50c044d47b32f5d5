package model

import (
	"encoding/json"
	"time"
)

// Attachment is a piece of evidence attached to a draft or poll.
// Payload bytes are stored as-is; compression happens upstream.
type Attachment struct {
	Name      string `json:"name"`
	Type      string `json:"type"` // png, jpeg, jpg
	Data      []byte `json:"data"`
	IsSpoiler bool   `json:"is_spoiler"`
}

// Draft is a report being assembled by its owner before submission.
// The database table is named 'drafts'.
type Draft struct {
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
}

// DraftRecord is the persisted form of Draft.
type DraftRecord struct {
	ID                int64  `db:"id"`
	Owner             string `db:"owner"`
	Category          string `db:"category"`
	Subcategory       string `db:"subcategory"`
	ReportedUsers     string `db:"reported_users"`     // JSON array
	AssociatedServers string `db:"associated_servers"` // JSON array
	BriefDescription  string `db:"brief_description"`
	LongDescription   string `db:"long_description"`
	Attachments       string `db:"attachments"` // JSON array
	IsAnonymous       bool   `db:"is_anonymous"`
}

func (r *DraftRecord) Decode() (*Draft, error) {
	d := &Draft{
		ID:               r.ID,
		Owner:            r.Owner,
		Category:         r.Category,
		Subcategory:      r.Subcategory,
		BriefDescription: r.BriefDescription,
		LongDescription:  r.LongDescription,
		IsAnonymous:      r.IsAnonymous,
	}
	for blob, dst := range map[string]any{
		r.ReportedUsers:     &d.ReportedUsers,
		r.AssociatedServers: &d.AssociatedServers,
		r.Attachments:       &d.Attachments,
	} {
		if blob == "" {
			continue
		}
		if err := json.Unmarshal([]byte(blob), dst); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Draft) Encode() (*DraftRecord, error) {
	users, err := json.Marshal(d.ReportedUsers)
	if err != nil {
		return nil, err
	}
	servers, err := json.Marshal(d.AssociatedServers)
	if err != nil {
		return nil, err
	}
	attachments, err := json.Marshal(d.Attachments)
	if err != nil {
		return nil, err
	}
	return &DraftRecord{
		ID:                d.ID,
		Owner:             d.Owner,
		Category:          d.Category,
		Subcategory:       d.Subcategory,
		ReportedUsers:     string(users),
		AssociatedServers: string(servers),
		BriefDescription:  d.BriefDescription,
		LongDescription:   d.LongDescription,
		Attachments:       string(attachments),
		IsAnonymous:       d.IsAnonymous,
	}, nil
}

// Report is the immutable archival record created from the winning
// option when a poll resolves. The database table is named 'reports'.
type Report struct {
	ID                int64
	ReportedUsers     []string
	AssociatedServers []string
	Category          string
	Subcategory       string
	Attachments       []Attachment
	AddressingType    string
	ReportedBy        string
	IsAnonymous       bool
	Sanctions         []SanctionSpec
	Polling           Vote
	CreatedAt         time.Time
	PushedAt          time.Time
	// Stats holds the fan-out outcome per sanctioned user id.
	Stats map[string]SanctionStats
}

// ReportRecord is the persisted form of Report.
type ReportRecord struct {
	ID                int64  `db:"id"`
	ReportedUsers     string `db:"reported_users"`
	AssociatedServers string `db:"associated_servers"`
	Category          string `db:"category"`
	Subcategory       string `db:"subcategory"`
	Attachments       string `db:"attachments"`
	AddressingType    string `db:"addressing_type"`
	ReportedBy        string `db:"reported_by"`
	IsAnonymous       bool   `db:"is_anonymous"`
	Sanctions         string `db:"sanctions"`
	Polling           string `db:"polling"`
	CreatedAt         int64  `db:"created_at"`
	PushedAt          int64  `db:"pushed_at"`
	Stats             string `db:"stats"`
}

func (rep *Report) Encode() (*ReportRecord, error) {
	out := &ReportRecord{
		ID:             rep.ID,
		Category:       rep.Category,
		Subcategory:    rep.Subcategory,
		AddressingType: rep.AddressingType,
		ReportedBy:     rep.ReportedBy,
		IsAnonymous:    rep.IsAnonymous,
		CreatedAt:      rep.CreatedAt.Unix(),
		PushedAt:       rep.PushedAt.Unix(),
	}
	for dst, src := range map[*string]any{
		&out.ReportedUsers:     rep.ReportedUsers,
		&out.AssociatedServers: rep.AssociatedServers,
		&out.Attachments:       rep.Attachments,
		&out.Sanctions:         rep.Sanctions,
		&out.Polling:           rep.Polling,
		&out.Stats:             rep.Stats,
	} {
		blob, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		*dst = string(blob)
	}
	return out, nil
}

func (r *ReportRecord) Decode() (*Report, error) {
	rep := &Report{
		ID:             r.ID,
		Category:       r.Category,
		Subcategory:    r.Subcategory,
		AddressingType: r.AddressingType,
		ReportedBy:     r.ReportedBy,
		IsAnonymous:    r.IsAnonymous,
		CreatedAt:      time.Unix(r.CreatedAt, 0).UTC(),
		PushedAt:       time.Unix(r.PushedAt, 0).UTC(),
	}
	for blob, dst := range map[string]any{
		r.ReportedUsers:     &rep.ReportedUsers,
		r.AssociatedServers: &rep.AssociatedServers,
		r.Attachments:       &rep.Attachments,
		r.Sanctions:         &rep.Sanctions,
		r.Polling:           &rep.Polling,
		r.Stats:             &rep.Stats,
	} {
		if blob == "" {
			continue
		}
		if err := json.Unmarshal([]byte(blob), dst); err != nil {
			return nil, err
		}
	}
	return rep, nil
}
