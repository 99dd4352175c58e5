package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/clients"
	httpclient "github.com/kosarica/catalog-service/internal/http"
	"github.com/stretchr/testify/assert"
)

func TestFailureOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&clients.CallError{Subsystem: "prodo", Code: "TIMEOUT"}, "prodo:TIMEOUT"},
		{fmt.Errorf("phase: %w", &clients.CallError{Subsystem: "franz", Code: "unreachable"}), "franz:unreachable"},
		{&httpclient.FetchError{URL: "http://x", Code: "404"}, "fetch:404"},
		{&archive.ParseError{Reason: "invalid zip archive"}, "archive:invalid zip archive"},
		{&ValidationError{Message: "bad"}, "validation:bad"},
		{internalError(errors.New("boom")), "internal:boom"},
		{errors.New("plain"), "internal:plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureOf(tt.err))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "prodo:TIMEOUT", 2048, "prodo:TIMEOUT"},
		{"exact", "abc", 3, "abc"},
		{"drops partial word", "prodo:abc defgh", 12, "prodo:abc"},
		{"cut on space", "abc def", 3, "abc"},
		{"cut before space", "abc def", 4, "abc"},
		{"multibyte", "ошибка сервера", 10, "ошибка"},
		{"single word", "abcdefghij", 4, "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
		})
	}
}

func TestTruncateLongFailure(t *testing.T) {
	long := "validation:" + strings.Repeat("значение ", 400)
	got := Truncate(long, DefaultFailureMaxLength)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), DefaultFailureMaxLength)
	assert.True(t, strings.HasSuffix(got, "значение"))
}
