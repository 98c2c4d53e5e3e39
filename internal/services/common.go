package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateReference tags the entries and events written by one operation,
// e.g. STL20240514093000-1f3c9a2e.
func GenerateReference(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%s-%s", prefix, now.UTC().Format("20060102150405"), suffix)
}
