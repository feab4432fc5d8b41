package repositories

import (
	"context"
	"cone-tracker-service/internal/domain"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Set(sec float64) {
	c.t = time.Unix(0, int64(sec*float64(time.Second)))
}

func newTestConeRepo(t *testing.T, dir string, clock *fakeClock) *FileConeRepository {
	t.Helper()
	return NewFileConeRepository(ConeStoreOptions{
		DataDir:   dir,
		Delimiter: "|",
		Cooldown:  10 * time.Minute,
		Serialize: true,
		Now:       clock.Now,
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestLoadMissingConeIsEmpty(t *testing.T) {
	repo := newTestConeRepo(t, t.TempDir(), &fakeClock{})

	recs, err := repo.Load(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty history, got %d records", len(recs))
	}
}

func TestLoadParsesRecordsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "3"), "1.5|2.5|1.1.1.1|100.0\n\n-3|4|2.2.2.2|200.25\n")
	repo := newTestConeRepo(t, dir, &fakeClock{})

	recs, err := repo.Load(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.ConeRecord{
		{Lat: "1.5", Long: "2.5", IPAddress: "1.1.1.1", Timestamp: "100.0"},
		{Lat: "-3", Long: "4", IPAddress: "2.2.2.2", Timestamp: "200.25"},
	}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Fatalf("record %d = %+v, want %+v", i, recs[i], want[i])
		}
	}
}

func TestLoadRejectsWrongFieldCount(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		fields  int
	}{
		{"three fields", "1|2|1.1.1.1|100.0\n1|2|100.0\n", 2, 3},
		{"five fields", "1|2|1.1.1.1|100.0|extra\n", 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "1"), tt.content)
			repo := newTestConeRepo(t, dir, &fakeClock{})

			_, err := repo.Load(context.Background(), 1)
			if !errors.Is(err, domain.ErrMalformedRecord) {
				t.Fatalf("err = %v, want ErrMalformedRecord", err)
			}

			var mre *domain.MalformedRecordError
			if !errors.As(err, &mre) {
				t.Fatalf("expected *MalformedRecordError, got %T", err)
			}
			if mre.Line != tt.line || mre.Fields != tt.fields {
				t.Fatalf("line=%d fields=%d, want line=%d fields=%d", mre.Line, mre.Fields, tt.line, tt.fields)
			}
		})
	}
}

func TestUpdateRejectsMalformedHistoryWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1")
	content := "1|2|1.1.1.1|100.0\n1|2|100.0"
	writeFile(t, path, content)

	clock := &fakeClock{}
	clock.Set(5000)
	repo := newTestConeRepo(t, dir, clock)

	ok, err := repo.Update(context.Background(), 1, "3", "4", "9.9.9.9")
	if !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	if ok {
		t.Fatal("update should not be accepted")
	}
	if got := readFile(t, path); got != content {
		t.Fatalf("file changed to %q", got)
	}
}

func TestUpdateRejectsUnparseableHistoricalTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2")
	content := "1|2|1.1.1.1|not-a-time\n"
	writeFile(t, path, content)

	clock := &fakeClock{}
	clock.Set(5000)
	repo := newTestConeRepo(t, dir, clock)

	if _, err := repo.Load(context.Background(), 2); err != nil {
		t.Fatalf("load should tolerate a bad timestamp, got %v", err)
	}

	_, err := repo.Update(context.Background(), 2, "3", "4", "9.9.9.9")
	if !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
	if got := readFile(t, path); got != content {
		t.Fatalf("file changed to %q", got)
	}
}

func TestUpdateToleratesPaddedHistoricalTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "3")
	writeFile(t, path, "1|2|9.9.9.9| 1000.0\n")

	clock := &fakeClock{}
	clock.Set(5000)
	repo := newTestConeRepo(t, dir, clock)
	ctx := context.Background()

	summaries, err := repo.ListMarkers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].LastUpdate == nil || *summaries[0].LastUpdate != 1000 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	ok, err := repo.Update(ctx, 3, "3", "4", "9.9.9.9")
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v; want true, nil", ok, err)
	}

	// inside the window the padded row still counts
	clock.Set(1100)
	writeFile(t, path, "1|2|9.9.9.9| 1000.0\n")
	if ok, err := repo.Update(ctx, 3, "3", "4", "9.9.9.9"); err != nil || ok {
		t.Fatalf("Update = %v, %v; want false, nil", ok, err)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{}
	clock.Set(1700.5)
	repo := newTestConeRepo(t, dir, clock)
	ctx := context.Background()

	ok, err := repo.Update(ctx, 5, "-36.81", "174.77", "1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("first update should be accepted")
	}

	recs, err := repo.Load(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	want := domain.ConeRecord{Lat: "-36.81", Long: "174.77", IPAddress: "1.2.3.4", Timestamp: "1700.5"}
	if recs[0] != want {
		t.Fatalf("record = %+v, want %+v", recs[0], want)
	}
}

func TestUpdateCooldownPerMarkerAndIP(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{}
	clock.Set(10000)
	repo := newTestConeRepo(t, dir, clock)
	ctx := context.Background()

	steps := []struct {
		id   int
		ip   string
		want bool
	}{
		{5, "1.1.1.1", true},
		{5, "1.1.1.1", false},
		{5, "2.2.2.2", true},
		{6, "1.1.1.1", true},
		{6, "1.1.1.1", false},
	}

	for i, s := range steps {
		got, err := repo.Update(ctx, s.id, "1", "2", s.ip)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if got != s.want {
			t.Fatalf("step %d: Update(%d, %s) = %v, want %v", i, s.id, s.ip, got, s.want)
		}
	}
}

func TestUpdateAcceptedAgainAfterCooldown(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{}
	clock.Set(1000)
	repo := newTestConeRepo(t, dir, clock)
	ctx := context.Background()

	if ok, err := repo.Update(ctx, 1, "1", "2", "1.1.1.1"); err != nil || !ok {
		t.Fatalf("first update = %v, %v; want true, nil", ok, err)
	}

	clock.Set(1599)
	if ok, err := repo.Update(ctx, 1, "1", "2", "1.1.1.1"); err != nil || ok {
		t.Fatalf("update inside window = %v, %v; want false, nil", ok, err)
	}

	// the window is exclusive at its lower edge: a record exactly
	// cooldown old no longer blocks
	clock.Set(1600)
	if ok, err := repo.Update(ctx, 1, "1", "2", "1.1.1.1"); err != nil || !ok {
		t.Fatalf("update after window = %v, %v; want true, nil", ok, err)
	}
}

func TestUpdateScenarioMarkerSeven(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "7")
	original := "-36.8|174.76|1.2.3.4|1000.0\n"
	writeFile(t, path, original)

	clock := &fakeClock{}
	repo := newTestConeRepo(t, dir, clock)
	ctx := context.Background()

	clock.Set(1100)
	ok, err := repo.Update(ctx, 7, "-36.81", "174.77", "1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("update at 1100 should be rate limited")
	}
	if got := readFile(t, path); got != original {
		t.Fatalf("file changed to %q", got)
	}

	clock.Set(1700)
	ok, err = repo.Update(ctx, 7, "-36.81", "174.77", "1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("update at 1700 should be accepted")
	}

	want := original + "-36.81|174.77|1.2.3.4|1700.0\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestUpdateRepairsMissingTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "8")
	writeFile(t, path, "1|2|9.9.9.9|1000.0")

	clock := &fakeClock{}
	clock.Set(5000)
	repo := newTestConeRepo(t, dir, clock)
	ctx := context.Background()

	ok, err := repo.Update(ctx, 8, "3", "4", "1.1.1.1")
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v; want true, nil", ok, err)
	}

	want := "1|2|9.9.9.9|1000.0\n3|4|1.1.1.1|5000.0\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}

	recs, err := repo.Load(ctx, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestUpdateRepairsNewlineEvenWhenRateLimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "9")
	writeFile(t, path, "1|2|1.1.1.1|1000.0")

	clock := &fakeClock{}
	clock.Set(1100)
	repo := newTestConeRepo(t, dir, clock)

	ok, err := repo.Update(context.Background(), 9, "3", "4", "1.1.1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("update should be rate limited")
	}
	if got, want := readFile(t, path), "1|2|1.1.1.1|1000.0\n"; got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestUpdateRejectsFieldsThatBreakTheFormat(t *testing.T) {
	dir := t.TempDir()
	repo := newTestConeRepo(t, dir, &fakeClock{})
	ctx := context.Background()

	inputs := []struct{ lat, long, ip string }{
		{"1|2", "3", "1.1.1.1"},
		{"1", "3\n4|5|6|7", "1.1.1.1"},
		{"1", "3", "1.1.1.1\r"},
	}
	for _, in := range inputs {
		_, err := repo.Update(ctx, 1, in.lat, in.long, in.ip)
		if !errors.Is(err, domain.ErrInvalidField) {
			t.Fatalf("Update(%q, %q, %q) err = %v, want ErrInvalidField", in.lat, in.long, in.ip, err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "1")); !os.IsNotExist(err) {
		t.Fatalf("no file should be created, stat err = %v", err)
	}
}

func TestUpdateRejectsNegativeID(t *testing.T) {
	repo := newTestConeRepo(t, t.TempDir(), &fakeClock{})

	_, err := repo.Update(context.Background(), -1, "1", "2", "1.1.1.1")
	if !errors.Is(err, domain.ErrInvalidConeID) {
		t.Fatalf("err = %v, want ErrInvalidConeID", err)
	}
}

func TestUpdateCreatesMissingDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh", "cones")
	clock := &fakeClock{}
	clock.Set(1000)
	repo := newTestConeRepo(t, dir, clock)

	ok, err := repo.Update(context.Background(), 0, "1", "2", "1.1.1.1")
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v; want true, nil", ok, err)
	}
	if got, want := readFile(t, filepath.Join(dir, "0")), "1|2|1.1.1.1|1000.0\n"; got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestListMarkersMissingDir(t *testing.T) {
	repo := newTestConeRepo(t, filepath.Join(t.TempDir(), "nope"), &fakeClock{})

	got, err := repo.ListMarkers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestListMarkersSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10"), "1|2|1.1.1.1|100.0\n5|6|2.2.2.2|300.0\n")
	writeFile(t, filepath.Join(dir, "3"), "-36.8|174.7|1.1.1.1|50.0")
	writeFile(t, filepath.Join(dir, "1"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a cone")
	writeFile(t, filepath.Join(dir, "2a"), "x")
	if err := os.Mkdir(filepath.Join(dir, "5"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	repo := newTestConeRepo(t, dir, &fakeClock{})

	got, err := repo.ListMarkers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 summaries, got %d: %+v", len(got), got)
	}
	for i, id := range []int{1, 3, 10} {
		if got[i].ID != id {
			t.Fatalf("summary %d has id %d, want %d", i, got[i].ID, id)
		}
	}

	if got[0].LastUpdate != nil || got[0].FirstLat != nil {
		t.Fatalf("empty cone should have absent fields, got %+v", got[0])
	}

	ten := got[2]
	if ten.FirstLat == nil || *ten.FirstLat != 1 || ten.LastLat == nil || *ten.LastLat != 5 {
		t.Fatalf("cone 10 first/last lat wrong: %+v", ten)
	}
	if ten.LastUpdate == nil || *ten.LastUpdate != 300 {
		t.Fatalf("cone 10 LastUpdate = %v, want 300", ten.LastUpdate)
	}
}

func TestListMarkersSkipsNonCanonicalNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "7"), "1|2|1.1.1.1|100.0\n")
	writeFile(t, filepath.Join(dir, "007"), "5|6|2.2.2.2|300.0\n")
	writeFile(t, filepath.Join(dir, "08"), "5|6|2.2.2.2|300.0\n")

	repo := newTestConeRepo(t, dir, &fakeClock{})

	got, err := repo.ListMarkers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("expected only cone 7, got %+v", got)
	}
	if got[0].LastLat == nil || *got[0].LastLat != 1 {
		t.Fatalf("cone 7 must come from file 7, got %+v", got[0])
	}
}

func TestListMarkersPropagatesMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1"), "1|2|1.1.1.1|100.0\n")
	writeFile(t, filepath.Join(dir, "2"), "1|2\n")

	repo := newTestConeRepo(t, dir, &fakeClock{})

	_, err := repo.ListMarkers(context.Background())
	if !errors.Is(err, domain.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestUpdateSerializedAcceptsExactlyOne(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{}
	clock.Set(1000)
	repo := newTestConeRepo(t, dir, clock)

	var accepted int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Update(context.Background(), 1, "1", "2", "1.1.1.1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly 1 accepted update, got %d", accepted)
	}

	recs, err := repo.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(recs))
	}
}
