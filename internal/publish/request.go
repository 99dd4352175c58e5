package publish

import (
	"fmt"
	"time"

	"github.com/kosarica/catalog-service/internal/apperror"
)

// ParseDateTime accepts full ISO-8601 datetimes with a zone only and
// returns them in UTC. name is the request field reported on failure.
func ParseDateTime(name, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, apperror.Validation(fmt.Sprintf("Field '%s' must be an ISO-8601 datetime.", name)).
			With("field", name)
	}
	return t.UTC(), nil
}
