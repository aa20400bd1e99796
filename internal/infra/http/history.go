package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Spok95/supplycover/internal/domain/catalog"
)

// number принимает 12.5, "12,5", "12.5". Всё, что не число, становится NULL, а не ошибкой.
type number struct{ decimal.NullDecimal }

func (n *number) UnmarshalJSON(b []byte) error {
	n.NullDecimal = decimal.NullDecimal{}
	raw := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	if raw == "" || raw == "null" {
		return nil
	}
	d, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return nil
	}
	n.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

type noteRequest struct {
	UserID              *int64  `json:"user_id"`
	Classification      *string `json:"classification"`
	Responsible         *string `json:"responsible"`
	Sector              *string `json:"sector"`
	MasterDescription   *string `json:"master_description"`
	RegistrationNumber  *string `json:"registration_number"`
	UnitPrice           number  `json:"unit_price"`
	RegistrationBalance number  `json:"registration_balance"`
	PackSize            number  `json:"pack_size"`
	StorageType         *string `json:"storage_type"`
	StorageCapacity     *string `json:"storage_capacity"`
	Observation         *string `json:"observation"`
}

func (req noteRequest) input(itemID int64) catalog.NoteInput {
	return catalog.NoteInput{
		ItemID:              itemID,
		UserID:              req.UserID,
		Classification:      req.Classification,
		Responsible:         req.Responsible,
		Sector:              req.Sector,
		MasterDescription:   req.MasterDescription,
		RegistrationNumber:  req.RegistrationNumber,
		UnitPrice:           req.UnitPrice.NullDecimal,
		RegistrationBalance: req.RegistrationBalance.NullDecimal,
		PackSize:            req.PackSize.NullDecimal,
		StorageType:         req.StorageType,
		StorageCapacity:     req.StorageCapacity,
		Observation:         req.Observation,
	}.Normalized()
}

func (a *api) saveNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "item id must be a positive integer")
		return
	}
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	entry, err := a.svc.SaveNote(r.Context(), req.input(id))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
