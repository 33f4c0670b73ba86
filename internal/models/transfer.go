package models

import (
	"fmt"
	"time"
)

// TransferStatus is the terminal status of a persisted transfer run.
type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// TransferRecord is the persisted summary of one transfer run.
type TransferRecord struct {
	id                 string
	sequence           int
	sourceService      string
	sourcePlaylistID   string
	sourcePlaylistName string
	destService        string
	destPlaylistID     string
	destPlaylistName   string
	destPlaylistURL    string
	status             TransferStatus
	failedState        string
	errorMessage       string
	tracksTotal        int
	tracksMatched      int
	tracksAdded        int
	auditPath          string
	startedAt          time.Time
	completedAt        time.Time
	createdAt          time.Time
	updatedAt          time.Time
	deletedAt          *time.Time
}

// TransferRecordOpts carries the initial field values for [NewTransferRecord].
type TransferRecordOpts struct {
	ID                 string
	SourceService      string
	SourcePlaylistID   string
	SourcePlaylistName string
	DestService        string
	DestPlaylistID     string
	DestPlaylistName   string
	DestPlaylistURL    string
	Status             TransferStatus
	FailedState        string
	ErrorMessage       string
	TracksTotal        int
	TracksMatched      int
	TracksAdded        int
	AuditPath          string
	StartedAt          time.Time
	CompletedAt        time.Time
}

// NewTransferRecord creates a [TransferRecord] stamped with the current time.
func NewTransferRecord(opts TransferRecordOpts) *TransferRecord {
	now := time.Now()
	return &TransferRecord{
		id:                 opts.ID,
		sourceService:      opts.SourceService,
		sourcePlaylistID:   opts.SourcePlaylistID,
		sourcePlaylistName: opts.SourcePlaylistName,
		destService:        opts.DestService,
		destPlaylistID:     opts.DestPlaylistID,
		destPlaylistName:   opts.DestPlaylistName,
		destPlaylistURL:    opts.DestPlaylistURL,
		status:             opts.Status,
		failedState:        opts.FailedState,
		errorMessage:       opts.ErrorMessage,
		tracksTotal:        opts.TracksTotal,
		tracksMatched:      opts.TracksMatched,
		tracksAdded:        opts.TracksAdded,
		auditPath:          opts.AuditPath,
		startedAt:          opts.StartedAt,
		completedAt:        opts.CompletedAt,
		createdAt:          now,
		updatedAt:          now,
	}
}

// RestoreTransferRecord rebuilds a record from stored columns.
func RestoreTransferRecord(opts TransferRecordOpts, sequence int, createdAt, updatedAt time.Time, deletedAt *time.Time) *TransferRecord {
	r := NewTransferRecord(opts)
	r.sequence = sequence
	r.createdAt = createdAt
	r.updatedAt = updatedAt
	r.deletedAt = deletedAt
	return r
}

func (r *TransferRecord) ID() string                 { return r.id }
func (r *TransferRecord) Sequence() int              { return r.sequence }
func (r *TransferRecord) SourceService() string      { return r.sourceService }
func (r *TransferRecord) SourcePlaylistID() string   { return r.sourcePlaylistID }
func (r *TransferRecord) SourcePlaylistName() string { return r.sourcePlaylistName }
func (r *TransferRecord) DestService() string        { return r.destService }
func (r *TransferRecord) DestPlaylistID() string     { return r.destPlaylistID }
func (r *TransferRecord) DestPlaylistName() string   { return r.destPlaylistName }
func (r *TransferRecord) DestPlaylistURL() string    { return r.destPlaylistURL }
func (r *TransferRecord) Status() TransferStatus     { return r.status }
func (r *TransferRecord) FailedState() string        { return r.failedState }
func (r *TransferRecord) ErrorMessage() string       { return r.errorMessage }
func (r *TransferRecord) TracksTotal() int           { return r.tracksTotal }
func (r *TransferRecord) TracksMatched() int         { return r.tracksMatched }
func (r *TransferRecord) TracksAdded() int           { return r.tracksAdded }
func (r *TransferRecord) AuditPath() string          { return r.auditPath }
func (r *TransferRecord) StartedAt() time.Time       { return r.startedAt }
func (r *TransferRecord) CompletedAt() time.Time     { return r.completedAt }
func (r *TransferRecord) CreatedAt() time.Time       { return r.createdAt }
func (r *TransferRecord) UpdatedAt() time.Time       { return r.updatedAt }
func (r *TransferRecord) DeletedAt() *time.Time      { return r.deletedAt }

func (r *TransferRecord) SetID(id string)             { r.id = id }
func (r *TransferRecord) SetSequence(seq int)         { r.sequence = seq }
func (r *TransferRecord) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *TransferRecord) SetStatus(s TransferStatus)  { r.status = s }
func (r *TransferRecord) SetErrorMessage(msg string)  { r.errorMessage = msg }
func (r *TransferRecord) SetDeletedAt(t *time.Time)   { r.deletedAt = t }
func (r *TransferRecord) SetTracksAdded(n int)        { r.tracksAdded = n }
func (r *TransferRecord) SetCompletedAt(t time.Time)  { r.completedAt = t }
func (r *TransferRecord) SetAuditPath(path string)    { r.auditPath = path }
func (r *TransferRecord) SetDestPlaylistURL(u string) { r.destPlaylistURL = u }

// MatchPercentage returns matched tracks as a share of the total.
func (r *TransferRecord) MatchPercentage() float64 {
	if r.tracksTotal == 0 {
		return 0
	}
	return float64(r.tracksMatched) / float64(r.tracksTotal) * 100
}

// Validate checks required fields and count consistency.
func (r *TransferRecord) Validate() error {
	if r.sourceService == "" || r.destService == "" {
		return fmt.Errorf("source and destination services are required")
	}
	if r.sourcePlaylistID == "" {
		return fmt.Errorf("source playlist ID is required")
	}
	switch r.status {
	case TransferCompleted, TransferFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.tracksMatched > r.tracksTotal {
		return fmt.Errorf("matched tracks (%d) exceed total (%d)", r.tracksMatched, r.tracksTotal)
	}
	return nil
}

// TransferTrack is one persisted match outcome belonging to a transfer.
type TransferTrack struct {
	TransferID   string
	Position     int
	Status       string
	Tier         string
	SourceTitle  string
	SourceArtist string
	SourceISRC   string
	SourceID     string
	DestTitle    string
	DestArtist   string
	DestID       string
	DestURL      string
	Error        string
}

// NewTransferTrack flattens a [MatchOutcome] at the given playlist position.
func NewTransferTrack(transferID string, position int, o MatchOutcome) TransferTrack {
	tt := TransferTrack{
		TransferID:   transferID,
		Position:     position,
		Status:       o.Status(),
		Tier:         o.Tier.String(),
		SourceTitle:  o.Source.Title,
		SourceArtist: o.Source.Artist,
		SourceISRC:   o.Source.ISRC,
		SourceID:     o.Source.ID,
	}
	if o.Dest != nil {
		tt.DestTitle = o.Dest.Title
		tt.DestArtist = o.Dest.Artist
		tt.DestID = o.Dest.ID
		tt.DestURL = o.Dest.URL
	}
	if o.Err != nil {
		tt.Error = o.Err.Error()
	}
	return tt
}
