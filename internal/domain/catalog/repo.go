package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Spok95/supplycover/internal/domain/materials"
	"github.com/Spok95/supplycover/internal/infra/dw"
)

var (
	// ErrItemNotFound - позиция каталога (или пользователь) для записи истории не существует.
	ErrItemNotFound  = errors.New("catalog item not found")
	ErrDuplicateNote = errors.New("duplicate control note")
)

// DB - то, что нужно от *pgxpool.Pool.
type DB interface {
	dw.Querier
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ db DB }

func NewRepo(db DB) *Repo { return &Repo{db: db} }

const itemColumns = `id, master,
	COALESCE(descricao, ''), COALESCE(descricao_mat, ''), COALESCE(apres, ''),
	COALESCE(serv_aquisicao, ''), COALESCE(resp_controle, ''), COALESCE(setor, ''), COALESCE(xyz, '')`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Master, &it.Description, &it.MaterialDescription, &it.Presentation,
		&it.Acquisition, &it.Responsible, &it.Sector, &it.XYZ)
	return it, err
}

func whereClause(f Filters, a *dw.Args) string {
	f = f.Normalized()
	conds := []string{"master IS NOT NULL", "TRIM(master) <> ''"}
	if f.Code != "" {
		// 586243 и 586.243 - один материал, ищем по всем написаниям.
		variants := materials.Variants(f.Code)
		alts := make([]string, len(variants))
		for i, v := range variants {
			alts[i] = `master ILIKE ` + a.Add(dw.ContainsPattern(v)) + ` ESCAPE '\'`
		}
		if len(alts) == 1 {
			conds = append(conds, alts[0])
		} else {
			conds = append(conds, "("+strings.Join(alts, " OR ")+")")
		}
	}
	if f.Responsible != "" {
		conds = append(conds, `resp_controle ILIKE `+a.Add(dw.ContainsPattern(f.Responsible))+` ESCAPE '\'`)
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func pageStatement(f Filters, page, size int) dw.Statement {
	var a dw.Args
	where := whereClause(f, &a)
	limit := a.Add(size)
	offset := a.Add((page - 1) * size)
	sql := `
		SELECT ` + itemColumns + `
		FROM ctrl.safs_catalogo
		` + where + `
		ORDER BY master, id
		LIMIT ` + limit + ` OFFSET ` + offset
	return dw.Statement{SQL: sql, Args: a.Values()}
}

func countStatement(f Filters) dw.Statement {
	var a dw.Args
	where := whereClause(f, &a)
	return dw.Statement{SQL: `SELECT COUNT(*) FROM ctrl.safs_catalogo ` + where, Args: a.Values()}
}

// Page возвращает страницу каталога (page с 1) и общее число позиций под фильтром.
func (r *Repo) Page(ctx context.Context, f Filters, page, size int) ([]Item, int, error) {
	total, err := r.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.PageOnly(ctx, f, page, size)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// PageOnly - страница без COUNT, для потокового обхода каталога.
func (r *Repo) PageOnly(ctx context.Context, f Filters, page, size int) ([]Item, error) {
	if page < 1 {
		page = 1
	}
	st := pageStatement(f, page, size)
	rows, err := r.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog page: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		it.Master = strings.TrimSpace(it.Master)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Count(ctx context.Context, f Filters) (int, error) {
	st := countStatement(f)
	var n int
	if err := r.db.QueryRow(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

// FindByCodeOrDescription: сначала точное совпадение кода (в любом написании),
// затем первая по коду позиция, чьё описание содержит term. Не найдено - nil, nil.
func (r *Repo) FindByCodeOrDescription(ctx context.Context, term string) (*Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	var a dw.Args
	in := dw.List(&a, materials.Variants(term))
	it, err := scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM ctrl.safs_catalogo
		WHERE TRIM(master) IN (`+in+`)
		ORDER BY id
		LIMIT 1`, a.Values()...))
	if err == nil {
		return &it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find catalog item by code: %w", err)
	}

	it, err = scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM ctrl.safs_catalogo
		WHERE descricao ILIKE $1 ESCAPE '\'
		ORDER BY master
		LIMIT 1`, dw.ContainsPattern(term)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find catalog item by description: %w", err)
	}
	return &it, nil
}

// LastNotes - последняя запись истории контроля по каждой позиции.
func (r *Repo) LastNotes(ctx context.Context, ids []int64) (map[int64]Note, error) {
	out := make(map[int64]Note)
	if len(ids) == 0 {
		return out, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	var a dw.Args
	in := dw.List(&a, strIDs)
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (material_id)
		       material_id::text, qtde_por_embalagem::float8, tipo_armazenamento,
		       capacidade_estocagem::text, observacao
		FROM ctrl.hist_ctrl_empenho
		WHERE material_id::text IN (`+in+`)
		ORDER BY material_id, id DESC`, a.Values()...)
	if err != nil {
		return nil, fmt.Errorf("query control notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  Note
		)
		if err := rows.Scan(&id, &n.PackSize, &n.StorageType, &n.StorageCapacity, &n.Observation); err != nil {
			return nil, fmt.Errorf("scan control note: %w", err)
		}
		itemID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			continue
		}
		n.ItemID = itemID
		out[itemID] = n
	}
	return out, rows.Err()
}

const insertNoteSQL = `
	INSERT INTO ctrl.hist_ctrl_empenho (
		material_id, usuario_id, classificacao, resp_controle, setor_controle,
		master_descritivo, numero_registro, valor_unit_registro, saldo_registro,
		qtde_por_embalagem, tipo_armazenamento, capacidade_estocagem, observacao
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id, created_at`

func insertNoteArgs(in NoteInput) []any {
	return []any{
		in.ItemID, in.UserID, in.Classification, in.Responsible, in.Sector,
		in.MasterDescription, in.RegistrationNumber, in.UnitPrice, in.RegistrationBalance,
		in.PackSize, in.StorageType, in.StorageCapacity, in.Observation,
	}
}

// SaveNote добавляет запись в историю контроля позиции. Строки обрезаются по длинам колонок.
func (r *Repo) SaveNote(ctx context.Context, in NoteInput) (HistoryEntry, error) {
	if in.ItemID < 1 {
		return HistoryEntry{}, fmt.Errorf("%w: id %d", ErrItemNotFound, in.ItemID)
	}
	in = in.Normalized()
	out := HistoryEntry{NoteInput: in}
	err := r.db.QueryRow(ctx, insertNoteSQL, insertNoteArgs(in)...).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return HistoryEntry{}, fmt.Errorf("%w: id %d", ErrItemNotFound, in.ItemID)
			case "23505":
				return HistoryEntry{}, ErrDuplicateNote
			}
		}
		return HistoryEntry{}, fmt.Errorf("insert control note: %w", err)
	}
	return out, nil
}

// Descriptions - описание из каталога по коду материала (ключ materials.Key). Первая по id позиция.
func (r *Repo) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	out := make(map[string]string)
	variants := materials.ExpandAll(codes)
	if len(variants) == 0 {
		return out, nil
	}
	var a dw.Args
	in := dw.List(&a, variants)
	rows, err := r.db.Query(ctx, `
		SELECT TRIM(master), COALESCE(descricao, '')
		FROM ctrl.safs_catalogo
		WHERE TRIM(master) IN (`+in+`)
		ORDER BY id`, a.Values()...)
	if err != nil {
		return nil, fmt.Errorf("query catalog descriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, desc string
		if err := rows.Scan(&code, &desc); err != nil {
			return nil, fmt.Errorf("scan catalog description: %w", err)
		}
		k := materials.Key(code)
		if _, ok := out[k]; ok || k == "" {
			continue
		}
		out[k] = strings.TrimSpace(desc)
	}
	return out, rows.Err()
}
