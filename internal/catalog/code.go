package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// MaxCodeLength bounds a catalog code.
const MaxCodeLength = 50

var (
	titlePattern = `[a-z0-9_]+(?:\.[a-z0-9_]+)*`
	titleRe      = regexp.MustCompile(`^` + titlePattern + `$`)
	codeRe       = regexp.MustCompile(`^(` + titlePattern + `)-(MAIN|COUPON)-(\d+)$`)
)

// Code is a parsed catalog code {title}-{TYPE}-{version}.
type Code struct {
	Title   string
	Type    Type
	Version int
}

func (c Code) String() string {
	return FormatCode(c.Title, c.Type, c.Version)
}

// FormatCode builds a catalog code.
func FormatCode(title string, t Type, version int) string {
	return fmt.Sprintf("%s-%s-%d", title, t, version)
}

// ParseCode parses and validates a catalog code.
func ParseCode(s string) (Code, error) {
	if s == "" {
		return Code{}, fmt.Errorf("catalog_code is empty")
	}
	if len(s) > MaxCodeLength {
		return Code{}, fmt.Errorf("catalog_code is longer than %d characters", MaxCodeLength)
	}
	m := codeRe.FindStringSubmatch(s)
	if m == nil {
		return Code{}, fmt.Errorf("catalog_code %q must match {title}-{MAIN|COUPON}-{version}", s)
	}
	version, err := strconv.Atoi(m[3])
	if err != nil {
		return Code{}, fmt.Errorf("catalog_code %q has an invalid version: %w", s, err)
	}
	t, _ := ParseType(m[2])
	return Code{Title: m[1], Type: t, Version: version}, nil
}

// ValidTitleCode reports whether s is a well-formed title code.
func ValidTitleCode(s string) bool {
	return s != "" && len(s) <= MaxCodeLength && titleRe.MatchString(s)
}

// ValidatePublishID checks a publish id is an uppercase 26-character ULID.
func ValidatePublishID(s string) error {
	if len(s) != ulid.EncodedSize {
		return fmt.Errorf("publish_id must be %d characters", ulid.EncodedSize)
	}
	if s != strings.ToUpper(s) {
		return fmt.Errorf("publish_id must be uppercase")
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return fmt.Errorf("publish_id is not a valid ULID: %w", err)
	}
	return nil
}

// ValidateArchiveURL checks the archive location is an absolute http(s) URL.
func ValidateArchiveURL(s string) error {
	if s == "" {
		return fmt.Errorf("url is empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("url is malformed: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}

// ValidEntityID reports whether s is a canonical UUID.
func ValidEntityID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// Realm returns the title realm, the part before the first dot.
func Realm(title string) string {
	if i := strings.IndexByte(title, '.'); i >= 0 {
		return title[:i]
	}
	return title
}

// TitleName returns the part of the title after the first dot.
func TitleName(title string) string {
	if i := strings.IndexByte(title, '.'); i >= 0 {
		return title[i+1:]
	}
	return title
}
