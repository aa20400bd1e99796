package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	id  int64
	at  time.Time
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	*dest[1].(*time.Time) = r.at
	return nil
}

type fakeDB struct {
	row  fakeRow
	sql  string
	args []any
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return f.row
}

func strPtr(s string) *string { return &s }

func TestPageStatement(t *testing.T) {
	st := pageStatement(Filters{Code: " 586 ", Responsible: "ana"}, 3, 50)
	assert.Contains(t, st.SQL, "master ILIKE $1")
	assert.Contains(t, st.SQL, "resp_controle ILIKE $2")
	assert.Contains(t, st.SQL, "LIMIT $3 OFFSET $4")
	assert.Contains(t, st.SQL, "ORDER BY master")
	assert.Equal(t, []any{"%586%", "%ana%", 50, 100}, st.Args)
}

func TestCodeFilterMatchesAllSpellings(t *testing.T) {
	st := countStatement(Filters{Code: "586.243"})
	assert.Contains(t, st.SQL, `(master ILIKE $1 ESCAPE '\' OR master ILIKE $2 ESCAPE '\')`)
	assert.Equal(t, []any{"%586.243%", "%586243%"}, st.Args)

	st = pageStatement(Filters{Code: "586243", Responsible: "ana"}, 1, 10)
	assert.Contains(t, st.SQL, "resp_controle ILIKE $3")
	assert.Contains(t, st.SQL, "LIMIT $4 OFFSET $5")
	assert.Equal(t, []any{"%586243%", "%586.243%", "%ana%", 10, 0}, st.Args)
}

func TestCountStatementWithoutFilters(t *testing.T) {
	st := countStatement(Filters{})
	assert.Equal(t, "SELECT COUNT(*) FROM ctrl.safs_catalogo WHERE master IS NOT NULL AND TRIM(master) <> ''", st.SQL)
	assert.Empty(t, st.Args)
}

func TestFiltersEncode(t *testing.T) {
	assert.Equal(t, "", Filters{}.Encode())
	assert.Equal(t, "code=586&resp=ana+maria", Filters{Code: " 586", Responsible: "ana maria "}.Encode())
}

func TestNoteInputNormalized(t *testing.T) {
	in := NoteInput{
		ItemID:             1,
		Classification:     strPtr("  Curva A  "),
		Sector:             strPtr("   "),
		RegistrationNumber: strPtr(strings.Repeat("9", 60)),
		Responsible:        strPtr(strings.Repeat("é", 250)),
		Observation:        strPtr(" " + strings.Repeat("x", 500) + " "),
	}.Normalized()

	assert.Equal(t, "Curva A", *in.Classification)
	assert.Nil(t, in.Sector)
	assert.Nil(t, in.StorageType)
	assert.Len(t, *in.RegistrationNumber, 50)
	assert.Equal(t, 200, len([]rune(*in.Responsible)))
	assert.Len(t, *in.Observation, 500)
}

func TestSaveNoteInsertsReturningRow(t *testing.T) {
	at := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{id: 42, at: at}}
	price := decimal.RequireFromString("12.3456")

	got, err := NewRepo(db).SaveNote(context.Background(), NoteInput{
		ItemID:         7,
		Classification: strPtr(" A "),
		UnitPrice:      decimal.NewNullDecimal(price),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, at, got.CreatedAt)
	assert.Equal(t, "A", *got.Classification)
	assert.Contains(t, db.sql, "INSERT INTO ctrl.hist_ctrl_empenho")
	assert.Contains(t, db.sql, "RETURNING id, created_at")
	require.Len(t, db.args, 13)
	assert.Equal(t, int64(7), db.args[0])
	assert.Equal(t, "A", *db.args[2].(*string))
	assert.True(t, db.args[7].(decimal.NullDecimal).Decimal.Equal(price))
	assert.False(t, db.args[8].(decimal.NullDecimal).Valid)
}

func TestSaveNoteMapsConstraintErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRepo(&fakeDB{}).SaveNote(ctx, NoteInput{})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = NewRepo(&fakeDB{row: fakeRow{err: &pgconn.PgError{Code: "23503"}}}).SaveNote(ctx, NoteInput{ItemID: 9})
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = NewRepo(&fakeDB{row: fakeRow{err: &pgconn.PgError{Code: "23505"}}}).SaveNote(ctx, NoteInput{ItemID: 9})
	assert.ErrorIs(t, err, ErrDuplicateNote)

	boom := errors.New("conn reset")
	_, err = NewRepo(&fakeDB{row: fakeRow{err: boom}}).SaveNote(ctx, NoteInput{ItemID: 9})
	assert.ErrorIs(t, err, boom)
}
