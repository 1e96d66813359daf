package gateway

import (
	"encoding/json"
	"regexp"
	"strings"
)

// The gateway serializes empty optional maps as [] instead of null or {}.
var emptyArrayFields = regexp.MustCompile(`"(notes|acquirer_data)"\s*:\s*\[\s*\]`)

// NormalizeBody rewrites the empty-array sentinel of map-typed fields to null so the
// body decodes into map fields. It applies equally to single entities, collections
// and webhook envelopes.
func NormalizeBody(body []byte) []byte {
	return emptyArrayFields.ReplaceAll(body, []byte(`"$1":null`))
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Field       string `json:"field"`
	} `json:"error"`
}

var (
	descriptionPattern = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	fieldPattern       = regexp.MustCompile(`"field"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// ErrorMessage extracts a readable message from a gateway error body. It tries the
// JSON envelope, then a regex scan, then falls back to the raw body; it never fails.
func ErrorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Description != "" {
		msg := env.Error.Description
		if env.Error.Field != "" {
			msg += " (field: " + env.Error.Field + ")"
		}
		if env.Error.Code != "" {
			msg = env.Error.Code + ": " + msg
		}
		return msg
	}

	if m := descriptionPattern.FindSubmatch(body); m != nil {
		msg := string(m[1])
		if f := fieldPattern.FindSubmatch(body); f != nil {
			msg += " (field: " + string(f[1]) + ")"
		}
		return msg
	}

	return strings.TrimSpace(string(body))
}
