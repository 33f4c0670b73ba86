package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/repositories"
	"github.com/urfave/cli/v3"
)

// openHistory opens the history database. Unlike [Runner.history], failures are returned.
func (r *Runner) openHistory() (*repositories.HistoryRecorder, func(), error) {
	db, err := r.openDB(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return repositories.NewHistoryRecorder(repositories.NewTransferRepository(db)), func() { closeDB(r, db) }, nil
}

// transferSummary is the JSON shape of a stored transfer.
type transferSummary struct {
	ID             string    `json:"id"`
	Sequence       int       `json:"sequence"`
	Status         string    `json:"status"`
	FailedState    string    `json:"failed_state,omitempty"`
	Error          string    `json:"error,omitempty"`
	Source         string    `json:"source"`
	SourcePlaylist string    `json:"source_playlist"`
	Dest           string    `json:"dest"`
	DestPlaylist   string    `json:"dest_playlist,omitempty"`
	DestURL        string    `json:"dest_url,omitempty"`
	Total          int       `json:"total"`
	Matched        int       `json:"matched"`
	Added          int       `json:"added"`
	AuditPath      string    `json:"audit_path,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

func newTransferSummary(rec *models.TransferRecord) transferSummary {
	source := rec.SourcePlaylistName()
	if source == "" {
		source = rec.SourcePlaylistID()
	}
	return transferSummary{
		ID:             rec.ID(),
		Sequence:       rec.Sequence(),
		Status:         string(rec.Status()),
		FailedState:    rec.FailedState(),
		Error:          rec.ErrorMessage(),
		Source:         rec.SourceService(),
		SourcePlaylist: source,
		Dest:           rec.DestService(),
		DestPlaylist:   rec.DestPlaylistName(),
		DestURL:        rec.DestPlaylistURL(),
		Total:          rec.TracksTotal(),
		Matched:        rec.TracksMatched(),
		Added:          rec.TracksAdded(),
		AuditPath:      rec.AuditPath(),
		StartedAt:      rec.StartedAt(),
		CompletedAt:    rec.CompletedAt(),
	}
}

// HistoryList lists recent transfers, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	history, closeHistory, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	records, err := history.Recent(cmd.Int("limit"))
	if err != nil {
		return err
	}

	summaries := make([]transferSummary, len(records))
	for i, rec := range records {
		summaries[i] = newTransferSummary(rec)
	}

	return r.jsonOr(cmd.Bool("json"), summaries, func() error {
		if len(summaries) == 0 {
			return r.writePlain("No transfers recorded yet.\n")
		}
		rows := make([][]string, len(summaries))
		for i, s := range summaries {
			rows[i] = []string{
				strconv.Itoa(s.Sequence),
				shortID(s.ID),
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				s.Source + " → " + s.Dest,
				s.SourcePlaylist,
				fmt.Sprintf("%d/%d", s.Matched, s.Total),
				s.Status,
			}
		}
		return r.writeTable(
			[]string{"#", "ID", "Started", "Route", "Playlist", "Matched", "Status"},
			rows, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight,
		)
	})
}

// HistoryShow prints one transfer and its per-track outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "transfer id")
	if err != nil {
		return err
	}
	history, closeHistory, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	transfer, err := history.Show(args[0])
	if err != nil {
		return err
	}
	summary := newTransferSummary(transfer.Record)

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			transferSummary
			Tracks []models.TransferTrack `json:"tracks"`
		}{summary, transfer.Tracks}, true)
	}

	r.writePlainHeader(fmt.Sprintf("Transfer %s", summary.ID))
	r.writePlain("Status:      %s\n", summary.Status)
	if summary.FailedState != "" {
		r.writePlain("Failed at:   %s\n", summary.FailedState)
	}
	if summary.Error != "" {
		r.writePlain("Error:       %s\n", summary.Error)
	}
	r.writePlain("Source:      %s %s\n", summary.Source, summary.SourcePlaylist)
	r.writePlain("Destination: %s %s\n", summary.Dest, summary.DestPlaylist)
	if summary.DestURL != "" {
		r.writePlain("URL:         %s\n", summary.DestURL)
	}
	r.writePlain("Matched:     %d/%d (%.1f%%), %d added\n", summary.Matched, summary.Total, transfer.Record.MatchPercentage(), summary.Added)
	if summary.AuditPath != "" {
		r.writePlain("Audit log:   %s\n", summary.AuditPath)
	}
	r.writePlain("Took:        %s\n\n", summary.CompletedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	if len(transfer.Tracks) == 0 {
		return nil
	}
	rows := make([][]string, len(transfer.Tracks))
	for i, t := range transfer.Tracks {
		rows[i] = []string{strconv.Itoa(t.Position), t.SourceArtist, t.SourceTitle, t.Status, t.Tier, t.DestID}
	}
	return r.writeTable([]string{"#", "Artist", "Title", "Status", "Tier", "Destination ID"}, rows, alignRight)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
