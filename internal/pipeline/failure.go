package pipeline

import (
	"errors"
	"strings"
	"unicode"

	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/clients"
	httpclient "github.com/kosarica/catalog-service/internal/http"
)

// Failure subsystems.
const (
	SubsystemFetch      = "fetch"
	SubsystemArchive    = "archive"
	SubsystemValidation = "validation"
	SubsystemInternal   = "internal"
)

// ValidationError rejects an archive that conflicts with stored entities.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type internalErr struct {
	err error
}

func (e *internalErr) Error() string { return e.err.Error() }
func (e *internalErr) Unwrap() error { return e.err }

func internalError(err error) error {
	return &internalErr{err: err}
}

// FailureOf renders err as a task failure string {subsystem}:{code}.
func FailureOf(err error) string {
	var call *clients.CallError
	if errors.As(err, &call) {
		return call.Error()
	}
	var fetch *httpclient.FetchError
	if errors.As(err, &fetch) {
		return SubsystemFetch + ":" + fetch.Code
	}
	var parse *archive.ParseError
	if errors.As(err, &parse) {
		return SubsystemArchive + ":" + parse.Reason
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return SubsystemValidation + ":" + validation.Message
	}
	return SubsystemInternal + ":" + err.Error()
}

// Truncate cuts s to at most max runes. When the cut falls inside a word the
// partial word is dropped, unless the whole prefix is a single word.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := runes[:max]
	if !unicode.IsSpace(runes[max]) {
		if i := lastSpace(cut); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace)
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
