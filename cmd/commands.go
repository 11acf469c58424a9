package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"bicho/events"
	"bicho/models"

	log "github.com/sirupsen/logrus"
)

// progressBuffer bounds the progress events queued for the logger
const progressBuffer = 64

func runHouses(ctx context.Context, app *App, args []string, out io.Writer) error {
	if err := parseFlags(newFlagSet("houses"), args); err != nil {
		return err
	}

	houses, err := app.Houses.Get(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, houses)
}

func runRegistered(ctx context.Context, app *App, args []string, out io.Writer) error {
	if err := parseFlags(newFlagSet("registered"), args); err != nil {
		return err
	}

	houses, err := app.Tables.RegisteredHouses(ctx)
	if err != nil {
		return err
	}

	type registration struct {
		House      string `json:"house"`
		DrawTable  string `json:"draw_table"`
		GroupTable string `json:"group_table"`
		CreatedAt  int64  `json:"created_at"`
	}
	rows := make([]registration, 0, len(houses))
	for _, h := range houses {
		rows = append(rows, registration{h.HouseName, h.DrawTable, h.GroupTable, h.CreatedAt.Unix()})
	}
	return writeJSON(out, rows)
}

func runInfo(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("info")
	house := fs.String("house", "", "house name")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	info, err := app.Tables.TableInfo(ctx, *house)
	if err != nil {
		return err
	}
	return writeJSON(out, struct {
		TotalRows  int64  `json:"total_rows"`
		LastUpdate *int64 `json:"last_update"`
	}{info.TotalRows, info.LastUpdateUnix()})
}

func runSync(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("sync")
	house := fs.String("house", "", "house name")
	lottery := fs.String("lottery", "", "provider lottery identifier")
	days := fs.Int("days", 1, "days of history to fetch")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}
	if strings.TrimSpace(*lottery) == "" {
		return &models.ValidationError{Field: "lottery", Message: "-lottery is required"}
	}

	result, err := withProgress(ctx, func(sink events.Publisher) (*models.IngestResult, error) {
		return app.Ingestion.Sync(ctx, *house, *lottery, *days, sink)
	})
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func runIngest(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("ingest")
	house := fs.String("house", "", "house name")
	file := fs.String("file", "-", "snapshot JSON file, - for stdin")
	units := fs.Int("units", 1, "units requested from the provider, used to scale progress")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	snapshot, err := readSnapshot(*file)
	if err != nil {
		return err
	}

	result, err := withProgress(ctx, func(sink events.Publisher) (*models.IngestResult, error) {
		return app.Ingestion.Ingest(ctx, *house, snapshot, *units, sink)
	})
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func runExport(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("export")
	house := fs.String("house", "", "house name")
	path := fs.String("out", "-", "CSV destination, - for stdout")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	dest := out
	if *path != "-" {
		f, err := os.Create(*path)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer f.Close()
		dest = f
	}

	w := csv.NewWriter(dest)
	if err := w.Write([]string{"id", "place", "date", "hour", "milhar", "group", "updated_at"}); err != nil {
		return err
	}

	rows := 0
	err := app.Tables.Export(ctx, *house, func(r *models.DrawRecord) error {
		rows++
		return w.Write(drawCSVRow(r))
	})
	if err != nil {
		return fmt.Errorf("failed to export draws: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	log.WithFields(log.Fields{"house": *house, "rows": rows}).Info("Export finished")
	return nil
}

func runGroups(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("groups")
	house := fs.String("house", "", "house name")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	groups, err := app.Groups.ListGroups(ctx, *house)
	if err != nil {
		return err
	}
	return writeJSON(out, groups)
}

func runGroupAdd(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("group-add")
	house := fs.String("house", "", "house name")
	hour := fs.String("hour", "", "draw hour label")
	place := fs.Int("place", 0, "award place")
	numbers := fs.String("numbers", "", "comma separated numbers, e.g. 5,23,7")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	parsed, err := parseNumbers(*numbers)
	if err != nil {
		return err
	}

	group := &models.Group{Hour: *hour, Place: *place, Numbers: parsed}
	if err := app.Groups.AddGroup(ctx, *house, group); err != nil {
		return err
	}
	return writeJSON(out, group)
}

func runGroupEdit(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("group-edit")
	house := fs.String("house", "", "house name")
	id := fs.Int64("id", 0, "group id")
	hour := fs.String("hour", "", "draw hour label")
	place := fs.Int("place", 0, "award place")
	numbers := fs.String("numbers", "", "comma separated numbers, e.g. 5,23,7")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	parsed, err := parseNumbers(*numbers)
	if err != nil {
		return err
	}

	group := &models.Group{Hour: *hour, Place: *place, Numbers: parsed}
	if *id != 0 {
		group.ID = id
	}
	if err := app.Groups.EditGroup(ctx, *house, group); err != nil {
		return err
	}
	return writeJSON(out, group)
}

func runGroupDelete(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("group-delete")
	house := fs.String("house", "", "house name")
	id := fs.Int64("id", 0, "group id")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	if err := app.Groups.DeleteGroup(ctx, *house, *id); err != nil {
		return err
	}
	return writeJSON(out, map[string]int64{"deleted": *id})
}

func runHours(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("hours")
	house := fs.String("house", "", "house name")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	hours, err := app.Tables.DistinctHours(ctx, *house)
	if err != nil {
		return err
	}
	return writeJSON(out, hours)
}

func runPlaces(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("places")
	house := fs.String("house", "", "house name")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	places, err := app.Tables.DistinctPlaces(ctx, *house)
	if err != nil {
		return err
	}
	return writeJSON(out, places)
}

func runLoss(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("loss")
	house := fs.String("house", "", "house name")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	results, err := app.Analytics.LossSequence(ctx, *house)
	if err != nil {
		return err
	}
	return writeJSON(out, results)
}

func runHistory(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("history")
	house := fs.String("house", "", "house name")
	limit := fs.Int("limit", 20, "number of runs to show")
	if err := parseHouseFlags(fs, args, house); err != nil {
		return err
	}

	runs, err := app.Ingestion.History(ctx, *house, *limit)
	if err != nil {
		return err
	}

	type runRow struct {
		RunID          string `json:"run_id"`
		RequestedUnits int    `json:"requested_units"`
		TotalEntries   int    `json:"total_entries"`
		Inserted       int    `json:"inserted"`
		Invalid        int    `json:"invalid"`
		Duplicates     int    `json:"duplicates"`
		StartedAt      string `json:"started_at"`
		FinishedAt     string `json:"finished_at"`
	}
	rows := make([]runRow, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, runRow{
			RunID:          r.RunID,
			RequestedUnits: r.RequestedUnits,
			TotalEntries:   r.TotalEntries,
			Inserted:       r.Inserted,
			Invalid:        r.Invalid,
			Duplicates:     r.Duplicates,
			StartedAt:      r.StartedAt.Format(time.RFC3339),
			FinishedAt:     r.FinishedAt.Format(time.RFC3339),
		})
	}
	return writeJSON(out, rows)
}

// withProgress runs an ingestion with a channel sink drained by a logger
func withProgress(ctx context.Context, fn func(events.Publisher) (*models.IngestResult, error)) (*models.IngestResult, error) {
	sink := events.NewChannelSink(progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range sink.Events() {
			if progress, ok := event.(events.IngestProgressEvent); ok {
				log.WithFields(log.Fields{
					"house":     progress.House,
					"processed": progress.Processed,
					"percent":   fmt.Sprintf("%.1f", progress.Percent),
				}).Info("Ingest progress")
			}
		}
	}()

	result, err := fn(sink)
	sink.Close()
	<-done
	return result, err
}

func readSnapshot(path string) (*models.Snapshot, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}

	var snapshot models.Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// parseNumbers reads a comma separated list, rejecting tokens that are not integers
func parseNumbers(value string) ([]int, error) {
	var numbers []int
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, &models.ValidationError{Field: "numbers", Message: fmt.Sprintf("%q is not a number", token)}
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func drawCSVRow(r *models.DrawRecord) []string {
	row := []string{strconv.FormatInt(r.ID, 10), strconv.Itoa(r.Place), "", "", "", "", r.UpdatedAt.Format(time.RFC3339)}
	if r.Date != nil {
		row[2] = r.Date.Format("2006-01-02")
	}
	if r.Hour != nil {
		row[3] = *r.Hour
	}
	if r.Milhar != nil {
		row[4] = *r.Milhar
	}
	if r.Group != nil {
		row[5] = strconv.Itoa(*r.Group)
	}
	return row
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
