package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateSnowflake returns a unique, time-ordered id of the form
// "<unix-millis>-<uuid>". Lexical order within a millisecond is
// arbitrary but ids never collide.
func GenerateSnowflake() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
