package instance

import (
	"fmt"
	"os"
	"strings"
)

// GetID returns a stable identifier for this process, used as the owner value
// of job locks and in worker logs. CABINETRY_INSTANCE_ID wins when set.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("CABINETRY_INSTANCE_ID")); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
