// Package handler provides HTTP request handlers for tokstash.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/yndnr/tokstash-go/internal/core/domain"
)

// Request parameter names.
const (
	ParamTTL      = "expiration_seconds"
	ParamCallback = "callback"
)

// params is a decoded create or update request.
type params struct {
	payload domain.Payload
	ttl     int64
}

// decodeParams reads the payload and TTL from a request.
//
// A non-empty JSON object body is the payload as-is. Otherwise the
// payload is built from query and form values: single-element lists
// are flattened and numeric strings become numbers. The TTL is read from
// query/form first, then from the JSON body. The callback parameter
// never reaches the payload.
func decodeParams(r *http.Request, maxBody int64) (*params, error) {
	if r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
	}

	body, err := readJSONBody(r)
	if err != nil {
		return nil, err
	}
	if err := r.ParseForm(); err != nil {
		return nil, domain.ErrInvalidPayload.WithCause(err)
	}

	p := &params{}

	raw := r.Form.Get(ParamTTL)
	var rawAny any = raw
	if raw == "" && body != nil {
		rawAny = body[ParamTTL]
	}
	ttl, err := parseTTL(rawAny)
	if err != nil {
		return nil, err
	}
	p.ttl = ttl

	if len(body) > 0 {
		p.payload = body
	} else {
		p.payload = formPayload(r.Form)
	}
	delete(p.payload, ParamCallback)

	return p, nil
}

// decodeTTL reads only the TTL, for /update_expiration.
func decodeTTL(r *http.Request, maxBody int64) (int64, error) {
	p, err := decodeParams(r, maxBody)
	if err != nil {
		return 0, err
	}
	return p.ttl, nil
}

// readJSONBody decodes a JSON object body. Non-JSON content types and
// empty bodies yield nil.
func readJSONBody(r *http.Request) (domain.Payload, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" && !strings.HasSuffix(ct, "+json") {
		return nil, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrInvalidPayload.WithDetails("body too large")
		}
		return nil, domain.ErrInvalidPayload.WithCause(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	p, err := domain.DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// parseTTL accepts a number or a decimal string. Absent, empty and JSON
// null values are ErrMissingTTL.
func parseTTL(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, domain.ErrMissingTTL
	case bool:
		return 0, domain.ErrInvalidTTL
	case json.Number:
		return parseTTLString(t.String())
	case float64:
		return ttlFromFloat(t, strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, domain.ErrMissingTTL
		}
		return parseTTLString(t)
	}

	ttl, err := cast.ToInt64E(v)
	if err != nil {
		return 0, domain.ErrInvalidTTL.WithCause(err)
	}
	return ttl, nil
}

func parseTTLString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.ErrInvalidTTL.WithDetails(s)
	}
	return ttlFromFloat(f, s)
}

// ttlFromFloat converts whole floats that fit in an int64.
func ttlFromFloat(f float64, raw string) (int64, error) {
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, domain.ErrInvalidTTL.WithDetails(raw)
	}
	return int64(f), nil
}

// formPayload flattens url values into a payload.
func formPayload(values map[string][]string) domain.Payload {
	out := make(domain.Payload, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = coerce(vs[0])
			continue
		}
		list := make([]any, len(vs))
		for i, s := range vs {
			list[i] = coerce(s)
		}
		out[k] = list
	}
	return out
}

// coerce turns decimal integers and finite floats into numbers and leaves
// every other string untouched.
func coerce(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return s
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return n
	}
	if !looksNumeric(t) {
		return s
	}
	f, err := cast.ToFloat64E(t)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return f
}

// looksNumeric rejects strings ParseFloat would accept but that are not
// plain decimal numbers, such as "inf", "NaN" or hex floats.
func looksNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			continue
		}
		return false
	}
	return true
}
