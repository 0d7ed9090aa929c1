package config

import (
	"os"
	"strings"
)

// instanceIDVars are consulted in order when BILLING_INSTANCE_ID is unset. DYNO is set
// by the platform, WORKER_ID by hand.
var instanceIDVars = []string{"DYNO", "WORKER_ID", "HOSTNAME"}

// applyPlatformOverrides lets a platform-assigned PORT win over BILLING_APP_PORT and
// derives an instance id when none was configured.
func (c *Config) applyPlatformOverrides() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.App.Port = port
	}
	if c.Service.InstanceID != "" {
		return
	}
	c.Service.InstanceID = "local"
	for _, key := range instanceIDVars {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			c.Service.InstanceID = id
			return
		}
	}
}
