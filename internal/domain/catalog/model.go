package catalog

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Item - позиция каталога ctrl.safs_catalogo. Master - код материала в написании каталога.
type Item struct {
	ID                  int64  `json:"id"`
	Master              string `json:"master"`
	Description         string `json:"description"`
	MaterialDescription string `json:"material_description"`
	Presentation        string `json:"presentation"`
	Acquisition         string `json:"acquisition"` // serv_aquisicao, классификация
	Responsible         string `json:"responsible"`
	Sector              string `json:"sector"`
	XYZ                 string `json:"xyz"`
}

// Filters уходят в SQL: подстрока кода и ответственного, без учёта регистра.
type Filters struct {
	Code        string
	Responsible string
}

func (f Filters) Normalized() Filters {
	return Filters{Code: strings.TrimSpace(f.Code), Responsible: strings.TrimSpace(f.Responsible)}
}

// Encode - стабильное представление для ключей кэша.
func (f Filters) Encode() string {
	f = f.Normalized()
	v := url.Values{}
	if f.Code != "" {
		v.Set("code", f.Code)
	}
	if f.Responsible != "" {
		v.Set("resp", f.Responsible)
	}
	return v.Encode()
}

// Note - последняя запись истории контроля (ctrl.hist_ctrl_empenho) по позиции каталога.
type Note struct {
	ItemID          int64    `json:"item_id"`
	PackSize        *float64 `json:"pack_size"`
	StorageType     *string  `json:"storage_type"`
	StorageCapacity *string  `json:"storage_capacity"`
	Observation     *string  `json:"observation"`
}

// NoteInput - новая запись истории контроля. nil-поля пишутся как NULL.
type NoteInput struct {
	ItemID              int64               `json:"item_id"`
	UserID              *int64              `json:"user_id,omitempty"`
	Classification      *string             `json:"classification"`
	Responsible         *string             `json:"responsible"`
	Sector              *string             `json:"sector"`
	MasterDescription   *string             `json:"master_description"`
	RegistrationNumber  *string             `json:"registration_number"`
	UnitPrice           decimal.NullDecimal `json:"unit_price"`
	RegistrationBalance decimal.NullDecimal `json:"registration_balance"`
	PackSize            decimal.NullDecimal `json:"pack_size"`
	StorageType         *string             `json:"storage_type"`
	StorageCapacity     *string             `json:"storage_capacity"`
	Observation         *string             `json:"observation"`
}

// Длины колонок ctrl.hist_ctrl_empenho.
const (
	maxClassification     = 100
	maxResponsible        = 200
	maxSector             = 100
	maxMasterDescription  = 100
	maxRegistrationNumber = 50
	maxStorageType        = 100
	maxStorageCapacity    = 100
)

// clip обрезает пробелы и режет строку до limit символов. Пустая строка - nil.
// limit <= 0 - без ограничения.
func clip(s *string, limit int) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	if limit > 0 && utf8.RuneCountInString(t) > limit {
		t = strings.TrimSpace(string([]rune(t)[:limit]))
	}
	return &t
}

// Normalized приводит строки к виду, который примет таблица.
func (in NoteInput) Normalized() NoteInput {
	in.Classification = clip(in.Classification, maxClassification)
	in.Responsible = clip(in.Responsible, maxResponsible)
	in.Sector = clip(in.Sector, maxSector)
	in.MasterDescription = clip(in.MasterDescription, maxMasterDescription)
	in.RegistrationNumber = clip(in.RegistrationNumber, maxRegistrationNumber)
	in.StorageType = clip(in.StorageType, maxStorageType)
	in.StorageCapacity = clip(in.StorageCapacity, maxStorageCapacity)
	in.Observation = clip(in.Observation, 0)
	return in
}

// HistoryEntry - сохранённая запись истории контроля.
type HistoryEntry struct {
	ID int64 `json:"id"`
	NoteInput
	CreatedAt time.Time `json:"created_at"`
}
