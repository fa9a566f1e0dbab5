package importer_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/importer"
	"caseline/internal/migrate"
)

func newTestImporter(t *testing.T) (importer.Importer, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.Repo.InsertOfficer(ctx, domain.Officer{
		ID: "admin-1", DisplayName: "Registrar", Role: "admin", CreatedAt: "2025-06-01T00:00:00Z",
	}); err != nil {
		t.Fatal(err)
	}
	return importer.Importer{Engine: eng, Config: cfg}, ctx
}

const registerCSV = `Case Number,Title,Assignment History
OS 55/2024,State v Kombo,"02/10/2024. Re-assigned to Don Rake on the 21/03/2025. Re-assigned to Dennis Yuambri on the 21/03/2025"
OS 56/2024,State v Maku,
,Missing number row,
OS 55/2024,Duplicate row,
`

func TestImportRegisterCSV(t *testing.T) {
	imp, ctx := newTestImporter(t)
	sum, err := imp.Run(ctx, importer.NewCSVSource(strings.NewReader(registerCSV)), "admin-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 2 || sum.Skipped != 2 || sum.Failed != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	first := sum.Rows[0]
	if first.CaseNumber != "OS 55/2024" || first.Events != 3 {
		t.Fatalf("unexpected first row %+v", first)
	}
	events, err := imp.Engine.Repo.ListReassignments(ctx, first.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 reassignment rows, got %+v", events)
	}
	if events[0].OfficerName != nil || events[0].Kind != "initial" {
		t.Fatalf("unexpected initial event %+v", events[0])
	}
	if events[2].OfficerName == nil || *events[2].OfficerName != "Dennis Yuambri" {
		t.Fatalf("unexpected final event %+v", events[2])
	}

	// Imported cases get full workflow slots like any registration.
	counts, err := imp.Engine.Repo.CountPendingByRole(ctx, first.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if counts["secretary_lands"] != 1 || counts["director_legal"] != 1 || counts["manager_legal"] != 1 {
		t.Fatalf("workflow entries not seeded: %+v", counts)
	}

	// Duplicate and number-less rows are skipped, not failed.
	if !sum.Rows[2].Skipped || !sum.Rows[3].Skipped {
		t.Fatalf("expected rows skipped: %+v", sum.Rows)
	}
}

func TestImportWithoutEngineClock(t *testing.T) {
	imp, ctx := newTestImporter(t)
	// Engines assembled by hand may leave the clock unset; the importer
	// must fall back to the wall clock instead of panicking.
	imp.Engine.Now = nil
	csv := "case_no,remarks\nOS 70/2024,\"03/03/2024. Re-assigned to Don Rake on the 04/04/2024\"\n"
	sum, err := imp.Run(ctx, importer.NewCSVSource(strings.NewReader(csv)), "admin-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Imported != 1 || sum.Rows[0].Events != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestImportRemainderSurfaced(t *testing.T) {
	imp, ctx := newTestImporter(t)
	csv := "case_no,remarks\nOS 60/2024,\"01/02/2024. Re-assigned to somebody at some point. Re-assigned to Don Rake on the 05/05/2024\"\n"
	sum, err := imp.Run(ctx, importer.NewCSVSource(strings.NewReader(csv)), "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Imported != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	row := sum.Rows[0]
	if row.Events != 2 || len(row.Remainder) != 1 {
		t.Fatalf("expected 2 events and 1 remainder segment, got %+v", row)
	}
}
