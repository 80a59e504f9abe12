package engine

import (
	"encoding/base32"

	"github.com/google/uuid"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newOrderID returns an id shaped like OABCDE-FGHIJ-KLMNOP.
func newOrderID() string { return newID('O') }

// newTradeID returns an id shaped like TABCDE-FGHIJ-KLMNOP.
func newTradeID() string { return newID('T') }

func newID(prefix byte) string {
	u := uuid.New()
	enc := idEncoding.EncodeToString(u[:])
	return string(prefix) + enc[0:5] + "-" + enc[5:10] + "-" + enc[10:16]
}

func newAmendID() string { return uuid.New().String() }
