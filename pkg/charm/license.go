package charm

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables naming the Tigera EE credential files. Both
// must point at readable files before an EE deployment can start.
// EnvTigeraEELicenseLegacy is the misspelled variable older CI jobs
// still export; it is honored when the corrected name is unset.
const (
	EnvTigeraEELicense       = "CHARM_TIGERA_EE_LICENSE"
	EnvTigeraEELicenseLegacy = "CHARM_TIGERA_EE_LICNESE"
	EnvTigeraEERegSecret     = "CHARM_TIGERA_EE_REG_SECRET"
)

// TigeraEECredentials holds the license and registry pull secret content
// fed to the Tigera EE charm as config.
type TigeraEECredentials struct {
	License        string
	RegistrySecret string
}

// LoadTigeraEECredentials reads the EE license and registry secret from
// the files named by the environment. Missing variables or unreadable
// files are hard errors since an EE deployment cannot proceed without
// them.
func LoadTigeraEECredentials() (*TigeraEECredentials, error) {
	licensePath := os.Getenv(EnvTigeraEELicense)
	if licensePath == "" {
		licensePath = os.Getenv(EnvTigeraEELicenseLegacy)
	}
	secretPath := os.Getenv(EnvTigeraEERegSecret)

	var missing []string
	if licensePath == "" {
		missing = append(missing, EnvTigeraEELicense)
	}
	if secretPath == "" {
		missing = append(missing, EnvTigeraEERegSecret)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("tigera EE credentials not configured, set: %s",
			strings.Join(missing, ", "))
	}

	license, err := os.ReadFile(licensePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read EE license: %w", err)
	}
	secret, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read EE registry secret: %w", err)
	}

	creds := &TigeraEECredentials{
		License:        strings.TrimSpace(string(license)),
		RegistrySecret: strings.TrimSpace(string(secret)),
	}
	if creds.License == "" {
		return nil, fmt.Errorf("EE license file %s is empty", licensePath)
	}
	if creds.RegistrySecret == "" {
		return nil, fmt.Errorf("EE registry secret file %s is empty", secretPath)
	}
	return creds, nil
}

// CharmConfig renders the credentials as charm config values.
func (c *TigeraEECredentials) CharmConfig() map[string]string {
	return map[string]string{
		"license-key":     c.License,
		"registry-secret": c.RegistrySecret,
	}
}
