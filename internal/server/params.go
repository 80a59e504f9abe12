package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kraken-sandbox-go/internal/apperr"

	"github.com/shopspring/decimal"
)

// params wraps request values with typed accessors. Malformed values are
// reported as invalid arguments naming the field.
type params struct {
	url.Values
}

func paramsFrom(r *http.Request) params {
	if p, ok := r.Context().Value(ctxParams).(params); ok {
		return p
	}
	if err := r.ParseForm(); err != nil {
		return params{url.Values{}}
	}
	return params{r.Form}
}

func (p params) str(name string) string {
	return strings.TrimSpace(p.Get(name))
}

func (p params) required(name string) (string, error) {
	v := p.str(name)
	if v == "" {
		return "", apperr.InvalidArgument(name)
	}
	return v, nil
}

func (p params) amount(name string) (decimal.Decimal, error) {
	v := p.str(name)
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, apperr.InvalidArgument(name)
	}
	return d, nil
}

func (p params) optAmount(name string) (*decimal.Decimal, error) {
	if p.str(name) == "" {
		return nil, nil
	}
	d, err := p.amount(name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p params) optInt64(name string) (*int64, error) {
	v := p.str(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, apperr.InvalidArgument(name)
	}
	return &n, nil
}

func (p params) count(name string, def int) (int, error) {
	v := p.str(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.InvalidArgument(name)
	}
	return n, nil
}

func (p params) flag(name string) bool {
	b, _ := strconv.ParseBool(p.str(name))
	return b
}

func (p params) list(name string) []string {
	v := p.str(name)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// unixTime parses a unix timestamp, which may carry a fractional part.
func (p params) unixTime(name string) (*time.Time, error) {
	v := p.str(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return nil, apperr.InvalidArgument(name)
	}
	sec := int64(f)
	t := time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
	return &t, nil
}

func (p params) since(name string) (int64, error) {
	t, err := p.unixTime(name)
	if err != nil || t == nil {
		return 0, err
	}
	return t.Unix(), nil
}
