package reports

import (
	"encoding/json"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"guardnet/globalactions"
	"guardnet/model"
	"guardnet/timer"
	"guardnet/utils/database"

	"github.com/jmoiron/sqlx"
)

// Draft limits.
const (
	maxDraftsPerOwner   = 5
	maxDraftAttachments = 15
	maxPollAttachments  = 25
	briefMinLen         = 50
	briefMaxLen         = 250
	draftLifetime       = 7 * 24 * time.Hour
	pollLifetime        = 24 * time.Hour
)

// reportCounter allocates draft ids. The id follows the report through
// promotion and archival, so it doubles as the case id.
const reportCounter = "reports"

// Validation errors, surfaced at the command boundary.
var (
	ErrUnknownCategory    = errors.New("unknown category or subcategory")
	ErrBriefLength        = errors.New("brief description must be 50 to 250 characters")
	ErrTooManyDrafts      = errors.New("draft limit reached, delete or submit one first")
	ErrTooManyAttachments = errors.New("attachment limit reached")
	ErrNoReportedUsers    = errors.New("at least one reported user is required")
	ErrDuplicateTarget    = errors.New("a reported user is already under an open report")
	ErrOpenReport         = errors.New("you already have a report awaiting verification")
	ErrDraftNotFound      = errors.New("draft not found")
)

// Pipeline validates and stores report drafts and drives each
// submitted report through the two-stage voting workflow.
type Pipeline struct {
	db     *sqlx.DB
	cfg    *model.Config
	coord  *globalactions.Coordinator
	timers *timer.Service
}

func NewPipeline(db *sqlx.DB, cfg *model.Config, coord *globalactions.Coordinator, timers *timer.Service) *Pipeline {
	return &Pipeline{
		db:     db,
		cfg:    cfg,
		coord:  coord,
		timers: timers,
	}
}

func (p *Pipeline) validCategory(category, subcategory string) bool {
	for _, sub := range p.cfg.Categories[category] {
		if sub == subcategory {
			return true
		}
	}
	return false
}

// idPayload is the timer payload for draft_expire and poll events.
type idPayload struct {
	ID int64 `json:"id"`
}

func encodeIDPayload(id int64) string {
	payload, _ := json.Marshal(idPayload{ID: id})
	return string(payload)
}

// CreateDraft validates and stores a new draft, arming its 7-day
// expiry timer.
func (p *Pipeline) CreateDraft(owner, category, subcategory string, reportedUsers, associatedServers []string, brief, long string, anonymous bool) (*model.Draft, error) {
	if !p.validCategory(category, subcategory) {
		return nil, ErrUnknownCategory
	}
	if n := utf8.RuneCountInString(brief); n < briefMinLen || n > briefMaxLen {
		return nil, ErrBriefLength
	}
	if len(reportedUsers) == 0 {
		return nil, ErrNoReportedUsers
	}

	existing, err := database.ListDraftsByOwner(p.db, owner)
	if err != nil {
		return nil, err
	}
	if len(existing) >= maxDraftsPerOwner {
		return nil, ErrTooManyDrafts
	}

	for _, userID := range reportedUsers {
		open, err := database.FindActivePollingByTarget(p.db, userID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return nil, ErrDuplicateTarget
		}
	}

	id, err := database.NextID(p.db, reportCounter)
	if err != nil {
		return nil, err
	}
	draft := &model.Draft{
		ID:                id,
		Owner:             owner,
		Category:          category,
		Subcategory:       subcategory,
		ReportedUsers:     reportedUsers,
		AssociatedServers: associatedServers,
		BriefDescription:  brief,
		LongDescription:   long,
		IsAnonymous:       anonymous,
	}
	record, err := draft.Encode()
	if err != nil {
		return nil, err
	}
	if err := database.InsertDraft(p.db, record); err != nil {
		return nil, err
	}
	if _, err := p.timers.Create(time.Now().Add(draftLifetime), timer.EventDraftExpire, encodeIDPayload(id)); err != nil {
		log.Printf("[Reports] Failed to arm expiry timer for draft %d: %v", id, err)
	}
	return draft, nil
}

// DraftUpdate carries the owner-editable draft fields. Nil fields are
// left unchanged.
type DraftUpdate struct {
	BriefDescription  *string
	LongDescription   *string
	ReportedUsers     []string
	AssociatedServers []string
	IsAnonymous       *bool
}

// EditDraft applies an update to an owned draft, re-validating the
// result before persisting.
func (p *Pipeline) EditDraft(owner string, draftID int64, update DraftUpdate) (*model.Draft, error) {
	record, err := database.GetDraft(p.db, draftID, owner)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDraftNotFound
	}
	draft, err := record.Decode()
	if err != nil {
		return nil, err
	}

	if update.BriefDescription != nil {
		draft.BriefDescription = *update.BriefDescription
	}
	if update.LongDescription != nil {
		draft.LongDescription = *update.LongDescription
	}
	if update.ReportedUsers != nil {
		draft.ReportedUsers = update.ReportedUsers
	}
	if update.AssociatedServers != nil {
		draft.AssociatedServers = update.AssociatedServers
	}
	if update.IsAnonymous != nil {
		draft.IsAnonymous = *update.IsAnonymous
	}

	if n := utf8.RuneCountInString(draft.BriefDescription); n < briefMinLen || n > briefMaxLen {
		return nil, ErrBriefLength
	}
	if len(draft.ReportedUsers) == 0 {
		return nil, ErrNoReportedUsers
	}

	updated, err := draft.Encode()
	if err != nil {
		return nil, err
	}
	if err := database.UpdateDraft(p.db, updated); err != nil {
		return nil, err
	}
	return draft, nil
}

// AttachProof appends evidence to a draft, bounded at 15 attachments.
func (p *Pipeline) AttachProof(owner string, draftID int64, attachments []model.Attachment) error {
	record, err := database.GetDraft(p.db, draftID, owner)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrDraftNotFound
	}
	draft, err := record.Decode()
	if err != nil {
		return err
	}
	if len(draft.Attachments)+len(attachments) > maxDraftAttachments {
		return ErrTooManyAttachments
	}
	draft.Attachments = append(draft.Attachments, attachments...)
	updated, err := draft.Encode()
	if err != nil {
		return err
	}
	return database.UpdateDraft(p.db, updated)
}

// DeleteDraft removes an owned draft and cancels its expiry timer.
func (p *Pipeline) DeleteDraft(owner string, draftID int64) error {
	existed, err := database.DeleteDraft(p.db, draftID, owner)
	if err != nil {
		return err
	}
	if !existed {
		return ErrDraftNotFound
	}
	if err := p.timers.Cancel(timer.EventDraftExpire, encodeIDPayload(draftID)); err != nil {
		log.Printf("[Reports] Failed to cancel expiry timer for draft %d: %v", draftID, err)
	}
	return nil
}

// ListDrafts returns all of the owner's drafts.
func (p *Pipeline) ListDrafts(owner string) ([]*model.Draft, error) {
	records, err := database.ListDraftsByOwner(p.db, owner)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Draft, 0, len(records))
	for i := range records {
		draft, err := records[i].Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, draft)
	}
	return out, nil
}

// HandleDraftExpiry is the timer handler for draft_expire. An already
// deleted or submitted draft is a no-op.
func (p *Pipeline) HandleDraftExpiry(raw string) {
	var payload idPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("[Reports] Bad draft expiry payload: %v", err)
		return
	}
	existed, err := database.DeleteDraft(p.db, payload.ID, "")
	if err != nil {
		log.Printf("[Reports] Failed to expire draft %d: %v", payload.ID, err)
		return
	}
	if existed {
		log.Printf("[Reports] Draft %d expired unsubmitted", payload.ID)
	}
}
