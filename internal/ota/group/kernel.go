package group

import (
	"os"
	"strings"
)

const (
	cmdlineStoreHashArg = "storehash="
	cmdlineRevisionArg  = "ghaf.revision="
)

// KernelParams are the well-known parameters this engine scrapes from the
// kernel command line. Empty strings mean the parameter was absent (the
// legacy boot path has no storehash).
type KernelParams struct {
	StoreHash string
	Revision  string
}

// ParseCmdline extracts KernelParams from a /proc/cmdline-shaped string,
// taking the first token carrying each parameter and the value after its
// last '='.
func ParseCmdline(cmdline string) KernelParams {
	var p KernelParams
	for _, token := range strings.Fields(cmdline) {
		if p.StoreHash == "" && strings.Contains(token, cmdlineStoreHashArg) {
			p.StoreHash = token[strings.LastIndexByte(token, '=')+1:]
		}
		if p.Revision == "" && strings.Contains(token, cmdlineRevisionArg) {
			p.Revision = token[strings.LastIndexByte(token, '=')+1:]
		}
	}
	return p
}

// ReadKernelParams parses the running kernel's /proc/cmdline.
func ReadKernelParams() (KernelParams, error) {
	data, err := os.ReadFile("/proc/cmdline")
	if err != nil {
		return KernelParams{}, err
	}
	return ParseCmdline(string(data)), nil
}

// VerityHashFragment returns the first 16 hex characters of the store hash,
// the fragment slot names carry; "" when no storehash is present.
func (p KernelParams) VerityHashFragment() string {
	if len(p.StoreHash) < 16 {
		return p.StoreHash
	}
	return p.StoreHash[:16]
}
